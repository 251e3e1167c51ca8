// Package programs is the catalog of built-in automation routines.
package programs

import (
	"github.com/aretw0/switchbot/pkg/program"
	"github.com/aretw0/switchbot/programs/bdsp"
	"github.com/aretw0/switchbot/programs/testprogram"
)

// Config carries the settings routines need from the server.
type Config struct {
	// OutputDir is where routines write screenshots and statistics.
	OutputDir string
}

// Register adds every built-in routine to catalog.
func Register(catalog *program.Catalog, cfg Config) error {
	if err := catalog.Register(testprogram.Name, testprogram.New); err != nil {
		return err
	}
	return catalog.Register(bdsp.Name, bdsp.Factory(cfg.OutputDir))
}
