package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/iio/sensor/iio"
)

// ChannelsAction prints the enabled scan channels of a device as the descriptor builder sees
// them.
func ChannelsAction(c *cli.Context) error {
	logger := newLogger(c)
	defer func() {
		goutils.UncheckedErrorFunc(logger.Sync)
	}()
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one device name")
	}
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	topo := cfg.Topology()
	name := c.Args().First()
	n, err := topo.ResolveDevice(name)
	if err != nil {
		return err
	}
	layout, err := iio.BuildChannels(topo.DeviceDir(n))
	if err != nil {
		return errors.Wrapf(err, "%s", name)
	}
	fmt.Fprintf(c.App.Writer, "%s (%s%d), scan size %d bytes\n", name, iio.DevicePrefix, n, layout.ScanSize)
	if len(layout.Channels) == 0 {
		fmt.Fprintln(c.App.Writer, "no scan channels enabled")
		return nil
	}
	fmt.Fprintln(c.App.Writer, channelTable(layout))
	return nil
}

func channelTable(layout *iio.ChannelLayout) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Generic", "Index", "Location", "Bytes", "Bits", "Shift", "Type", "Scale", "Offset"})
	for i, ch := range layout.Channels {
		endian, sign := "le", "u"
		if ch.BigEndian {
			endian = "be"
		}
		if ch.Signed {
			sign = "s"
		}
		t.AppendRow(table.Row{
			i,
			ch.Name,
			ch.GenericName,
			ch.Index,
			ch.Location,
			ch.ByteWidth,
			ch.BitsUsed,
			ch.Shift,
			endian + ":" + sign,
			fmt.Sprintf("%g", ch.Scale),
			fmt.Sprintf("%g", ch.Offset),
		})
	}
	return t.Render()
}
