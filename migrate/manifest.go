package migrate

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// ManifestFilename sits at the store root, next to the type folders.
const ManifestFilename = "manifest.yaml"

// WriteManifest records an export run at the store root.
func WriteManifest(storePath string, manifest Manifest) error {
	marshalled, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("migrate: couldn't marshal manifest: %w", err)
	}

	abs := path.Join(storePath, ManifestFilename)
	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("migrate: couldn't create file %s: %w", abs, err)
	}

	defer f.Close()
	if _, err := f.Write(marshalled); err != nil {
		return fmt.Errorf("migrate: couldn't write to file %s: %w", abs, err)
	}

	return nil
}

// ReadManifest loads the manifest a previous export run left behind.
func ReadManifest(storePath string) (Manifest, error) {
	abs := path.Join(storePath, ManifestFilename)
	source, err := os.ReadFile(abs)
	if err != nil {
		return Manifest{}, fmt.Errorf("migrate: couldn't read manifest %s: %w", abs, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(source, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("migrate: couldn't parse manifest %s: %w", abs, err)
	}

	if len(manifest.Objects) == 0 {
		return Manifest{}, fmt.Errorf("migrate: manifest %s lists no objects", abs)
	}

	return manifest, nil
}

// ReadExportedEDoc loads one object's exported representation.
func ReadExportedEDoc(storePath string, relativePath RelativePath) (string, error) {
	abs := path.Join(storePath, string(relativePath))
	source, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("migrate: couldn't read exported file %s: %w", abs, err)
	}
	return string(source), nil
}
