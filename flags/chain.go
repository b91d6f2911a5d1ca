package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// ChainFlags select the network and the L1 core contract to settle on.
func ChainFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "Named network (main|sepolia|fake)",
			Value: "fake",
		},
		cli.StringFlag{
			Name:  "l1.endpoint",
			Usage: "L1 JSON-RPC endpoint; empty settles against the local database",
		},
		cli.StringFlag{
			Name:  "l1.contract",
			Usage: "Core contract address (defaults to the network's)",
		},
		cli.StringFlag{
			Name:  "l1.keyfile",
			Usage: "File holding the hex private key that signs L1 transactions",
		},
		cli.DurationFlag{
			Name:  "l1.timeout",
			Usage: "Deadline for a single L1 operation, including mining",
			Value: 2 * time.Minute,
		},
		cli.StringFlag{
			Name:  "chain.programhash",
			Usage: "OS program hash committed by init (defaults to the network's)",
		},
		cli.StringFlag{
			Name:  "chain.confighash",
			Usage: "L2 config hash committed by init (defaults to the network's)",
		},
	}
}
