package cli

import (
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/iio/config"
)

// ConfigAction prints the configuration --config resolves to, with every default filled in.
func ConfigAction(c *cli.Context) error {
	logger := newLogger(c)
	defer func() {
		goutils.UncheckedErrorFunc(logger.Sync)
	}()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	return config.Write(c.App.Writer, cfg)
}
