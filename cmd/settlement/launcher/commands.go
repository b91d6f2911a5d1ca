package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-settlement/client"
	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/flags"
	"github.com/rony4d/go-settlement/messaging"
	"github.com/rony4d/go-settlement/settlement"
	"github.com/rony4d/go-settlement/snos"
)

var (
	errNoSender      = errors.New("--from is required without an L1 signer")
	errNoProgramHash = errors.New("--chain.programhash is not set for this network")
)

func commands() []cli.Command {
	return []cli.Command{
		{
			Name:   "init",
			Usage:  "Commit the configured chain spec and make the caller the governor",
			Action: withBackend(initAction),
		},
		{
			Name:   "spec",
			Usage:  "Print the committed chain spec",
			Action: withBackend(specAction),
		},
		{
			Name:   "state",
			Usage:  "Print the latest settled state",
			Action: withBackend(stateAction),
		},
		{
			Name:   "update-state",
			Usage:  "Settle one program output",
			Flags:  []cli.Flag{flags.OutputFlag},
			Action: withBackend(updateStateAction),
		},
		{
			Name:   "send-message",
			Usage:  "Send an L1->L2 message",
			Flags:  []cli.Flag{flags.FromFlag, flags.ToFlag, flags.SelectorFlag, flags.PayloadFlag, flags.NonceFlag},
			Action: withBackend(sendMessageAction),
		},
		{
			Name:   "message-status",
			Usage:  "Report whether a message is pending",
			Flags:  flags.MessageFlags(),
			Action: withBackend(messageStatusAction),
		},
		{
			Name:   "hash-message",
			Usage:  "Print the canonical hash of a message",
			Flags:  flags.MessageFlags(),
			Action: hashMessageAction,
		},
		{
			Name:   "watch",
			Usage:  "Stream state updates accepted by the L1 contract",
			Action: withBackend(watchAction),
		},
		{
			Name:      "dumpconfig",
			Usage:     "Show configuration values",
			ArgsUsage: "[<filename>]",
			Action:    dumpConfig,
		},
	}
}

type backendAction func(ctx context.Context, c *cli.Context, b backend) error

func withBackend(fn backendAction) func(*cli.Context) error {
	return func(c *cli.Context) error {
		cfg := configOf(c)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Network.Timeout)
		defer cancel()

		b, release, err := makeBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx, c, b)
	}
}

func printJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

func initAction(ctx context.Context, c *cli.Context, b backend) error {
	cfg := configOf(c)
	if cfg.Network.ProgramHash.IsZero() {
		return errNoProgramHash
	}
	spec := settlement.ChainSpec{
		ProgramHash: cfg.Network.ProgramHash,
		ConfigHash:  cfg.Network.ConfigHash,
	}
	if err := b.Initialize(ctx, spec); err != nil {
		return err
	}
	return printJSON(c, spec)
}

func specAction(ctx context.Context, c *cli.Context, b backend) error {
	spec, err := b.GetChainSpec(ctx)
	if err != nil {
		return err
	}
	return printJSON(c, spec)
}

func stateAction(ctx context.Context, c *cli.Context, b backend) error {
	state, err := b.GetState(ctx)
	if err != nil {
		return err
	}
	return printJSON(c, state)
}

func updateStateAction(ctx context.Context, c *cli.Context, b backend) error {
	file := c.String(flags.OutputFlag.Name)
	if file == "" {
		return fmt.Errorf("--%s is required", flags.OutputFlag.Name)
	}
	raw, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}
	output, err := snos.ParseJSON(raw)
	if err != nil {
		return err
	}
	if err := b.UpdateState(ctx, output); err != nil {
		return err
	}
	return stateAction(ctx, c, b)
}

type sentMessage struct {
	Hash    common.Hash             `json:"hash"`
	Message messaging.MessageL1ToL2 `json:"message"`
}

func sendMessageAction(ctx context.Context, c *cli.Context, b backend) error {
	msg, err := parseMessageToL2(c, b)
	if err != nil {
		return err
	}
	var h common.Hash
	if c.IsSet(flags.NonceFlag.Name) {
		h, err = b.SendMessageToL2(ctx, msg)
	} else {
		msg, h, err = b.SendNextMessageToL2(ctx, msg)
	}
	if err != nil {
		return err
	}
	return printJSON(c, sentMessage{Hash: h, Message: msg})
}

type messageStatus struct {
	Hash    common.Hash `json:"hash"`
	Pending bool        `json:"pending"`
}

func messageStatusAction(ctx context.Context, c *cli.Context, b backend) error {
	var (
		h       common.Hash
		pending bool
	)
	if c.Bool(flags.ToL1Flag.Name) {
		msg, err := parseMessageToL1(c)
		if err != nil {
			return err
		}
		h = msg.Hash()
		if pending, err = b.MessageToL1Exists(ctx, msg); err != nil {
			return err
		}
	} else {
		if !c.IsSet(flags.NonceFlag.Name) {
			return fmt.Errorf("--%s is required for an L1->L2 message", flags.NonceFlag.Name)
		}
		msg, err := parseMessageToL2(c, b)
		if err != nil {
			return err
		}
		h = msg.Hash()
		if pending, err = b.MessageToL2Exists(ctx, msg); err != nil {
			return err
		}
	}
	return printJSON(c, messageStatus{Hash: h, Pending: pending})
}

func hashMessageAction(c *cli.Context) error {
	var h common.Hash
	if c.Bool(flags.ToL1Flag.Name) {
		msg, err := parseMessageToL1(c)
		if err != nil {
			return err
		}
		h = msg.Hash()
	} else {
		msg, err := parseMessageToL2(c, nil)
		if err != nil {
			return err
		}
		h = msg.Hash()
	}
	_, err := fmt.Fprintln(c.App.Writer, h.Hex())
	return err
}

func watchAction(ctx context.Context, c *cli.Context, b backend) error {
	cc, ok := b.(*client.StarknetContractClient)
	if !ok {
		return errors.New("watch requires l1.endpoint")
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	sink := make(chan client.StateUpdate, 16)
	// The operation timeout bounds setup only.
	sub, err := cc.WatchStateUpdates(context.Background(), sink)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	for {
		select {
		case u := <-sink:
			if err := printJSON(c, u); err != nil {
				return err
			}
		case err := <-sub.Err():
			return err
		case <-sigc:
			return nil
		}
	}
}

// parseMessageToL2 reads an L1->L2 message from the command flags. Without
// --from it is sent by the backend's signer; without --nonce it stays zero.
func parseMessageToL2(c *cli.Context, b backend) (msg messaging.MessageL1ToL2, err error) {
	if from := c.String(flags.FromFlag.Name); from != "" {
		if !common.IsHexAddress(from) {
			return msg, fmt.Errorf("invalid --%s address %q", flags.FromFlag.Name, from)
		}
		msg.FromAddress = felt.FromAddress(common.HexToAddress(from))
	} else {
		var addr common.Address
		ok := b != nil
		if ok {
			addr, ok = defaultSender(b)
		}
		if !ok {
			return msg, errNoSender
		}
		msg.FromAddress = felt.FromAddress(addr)
	}
	if msg.ToAddress, err = feltFlag(c, flags.ToFlag.Name); err != nil {
		return msg, err
	}
	if msg.Selector, err = feltFlag(c, flags.SelectorFlag.Name); err != nil {
		return msg, err
	}
	if c.IsSet(flags.NonceFlag.Name) {
		if msg.Nonce, err = feltFlag(c, flags.NonceFlag.Name); err != nil {
			return msg, err
		}
	}
	msg.Payload, err = payloadFlag(c)
	return msg, err
}

func parseMessageToL1(c *cli.Context) (msg messaging.MessageL2ToL1, err error) {
	if msg.FromAddress, err = feltFlag(c, flags.FromFlag.Name); err != nil {
		return msg, err
	}
	if msg.ToAddress, err = feltFlag(c, flags.ToFlag.Name); err != nil {
		return msg, err
	}
	msg.Payload, err = payloadFlag(c)
	return msg, err
}

func feltFlag(c *cli.Context, name string) (felt.Felt, error) {
	raw := c.String(name)
	if raw == "" {
		return felt.Zero, fmt.Errorf("--%s is required", name)
	}
	v, err := felt.FromHex(raw)
	if err != nil {
		return felt.Zero, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

func payloadFlag(c *cli.Context) ([]felt.Felt, error) {
	words := splitCSV(c.String(flags.PayloadFlag.Name))
	payload := make([]felt.Felt, 0, len(words))
	for i, w := range words {
		v, err := felt.FromHex(w)
		if err != nil {
			return nil, fmt.Errorf("--%s[%d]: %w", flags.PayloadFlag.Name, i, err)
		}
		payload = append(payload, v)
	}
	return payload, nil
}
