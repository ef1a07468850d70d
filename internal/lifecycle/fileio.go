package lifecycle

import (
	"os"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coorderrors.NewIO("failed to read chunk file").WithComponent("lifecycle").WithOperation("readFile").WithCause(err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return coorderrors.NewIO("failed to write chunk file").WithComponent("lifecycle").WithOperation("writeFile").WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return coorderrors.NewIO("failed to finalize chunk file").WithComponent("lifecycle").WithOperation("writeFile").WithCause(err)
	}
	return nil
}
