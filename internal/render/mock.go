package render

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
)

// MockGenerator writes an empty placeholder file per prompt. Used in tests
// and local development.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt, outDir string) (string, error)
}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, prompt, outDir string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, outDir)
	}
	path := filepath.Join(outDir, fmt.Sprintf("%x.png", sha1.Sum([]byte(prompt))))
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

var _ Generator = (*MockGenerator)(nil)
