package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// StorageFlags select the local database used when no L1 endpoint is configured.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "db.preset",
			Usage: "Storage preset (lite|default|full)",
			Value: "default",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to the database cache",
		},
	}
}
