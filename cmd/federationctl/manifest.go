package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// ServiceRef is one subgraph entry in a manifest.yaml, grounded on the
// teacher's GatewayService (server/gateway.go / gateway/gateway.go).
type ServiceRef struct {
	Name        string   `yaml:"name"`
	Host        string   `yaml:"host"`
	SchemaFiles []string `yaml:"schema_files"`
}

// Manifest is the service-list config this CLI loads instead of dialing a
// schema registry, grounded on the teacher's GatewayOption shape.
type Manifest struct {
	ServiceName   string       `yaml:"service_name"`
	Services      []ServiceRef `yaml:"services"`
	Opentelemetry struct {
		Tracing struct {
			Enable   bool   `yaml:"enable" default:"false"`
			Endpoint string `yaml:"endpoint"`
		} `yaml:"tracing"`
	} `yaml:"opentelemetry"`
}

// LoadManifest reads and parses a manifest.yaml from dir (or dir itself if
// it is a file path).
func LoadManifest(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat manifest path: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "manifest.yaml")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// ReadSchema concatenates every schema file for a ServiceRef, mirroring
// gateway.NewGateway's per-service schema-file concatenation.
func (s ServiceRef) ReadSchema(baseDir string) ([]byte, error) {
	var out []byte
	for _, f := range s.SchemaFiles {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, f)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", f, err)
		}
		out = append(out, b...)
		out = append(out, '\n')
	}
	return out, nil
}
