package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// Message flags describe one bridge message on the command line.
var (
	FromFlag = cli.StringFlag{
		Name:  "from",
		Usage: "Sender address (L1 address for L1->L2, felt for L2->L1)",
	}
	ToFlag = cli.StringFlag{
		Name:  "to",
		Usage: "Recipient felt (L2 contract for L1->L2, L1 address for L2->L1)",
	}
	SelectorFlag = cli.StringFlag{
		Name:  "selector",
		Usage: "L2 entry point selector",
	}
	PayloadFlag = cli.StringFlag{
		Name:  "payload",
		Usage: "Comma-separated payload felts",
	}
	NonceFlag = cli.StringFlag{
		Name:  "nonce",
		Usage: "L1->L2 message nonce (defaults to the next one)",
	}
	ToL1Flag = cli.BoolFlag{
		Name:  "l2-to-l1",
		Usage: "Treat the message as L2->L1",
	}
	OutputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "JSON file with the program output (object or felt array)",
	}
)

// MessageFlags is the full message description.
func MessageFlags() []cli.Flag {
	return []cli.Flag{FromFlag, ToFlag, SelectorFlag, PayloadFlag, NonceFlag, ToL1Flag}
}
