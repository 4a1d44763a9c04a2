package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/trickle/internal/engine"
)

// OrdersOptions holds flags for the orders command.
type OrdersOptions struct {
	*RootOptions
	Database string
	Owner    string
}

// OrderEntry is one order of an owner.
type OrderEntry struct {
	OrderHash      string `json:"order_hash"`
	TokenPairHash  string `json:"token_pair_hash"`
	SellToken      string `json:"sell_token"`
	BuyToken       string `json:"buy_token"`
	SellAmount     string `json:"sell_amount"`
	Interval       int64  `json:"interval"`
	StartTimestamp int64  `json:"start_timestamp"`
	LastExecution  int64  `json:"last_execution"`
	NextDue        int64  `json:"next_due"`
}

// OrdersResult lists an owner's orders in pair insertion order.
type OrdersResult struct {
	Owner  string       `json:"owner"`
	Orders []OrderEntry `json:"orders"`
}

// RenderText implements TextRenderer.
func (r OrdersResult) RenderText(w io.Writer) {
	if len(r.Orders) == 0 {
		fmt.Fprintf(w, "No orders for %s.\n", r.Owner)
		return
	}
	fmt.Fprintf(w, "%d order(s) for %s:\n", len(r.Orders), r.Owner)
	for _, o := range r.Orders {
		fmt.Fprintf(w, "  %s\n", o.OrderHash)
		fmt.Fprintf(w, "    sell %s %s for %s every %ds\n", o.SellAmount, o.SellToken, o.BuyToken, o.Interval)
		fmt.Fprintf(w, "    start=%d last_execution=%d next_due=%d\n", o.StartTimestamp, o.LastExecution, o.NextDue)
	}
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List an owner's recurring orders",
		Long: `List every recurring order an owner has in a persisted store.

Example:
  trickle orders --db ./trickle.db --owner 0x00000000000000000000000000000000000A11CE`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrders(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner address (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runOrders(opts *OrdersOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	owner, err := parseAddressFlag(formatter, "owner", opts.Owner)
	if err != nil {
		return err
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	orders, err := listOrders(cmd.Context(), st, owner)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list orders", err)
	}
	return formatter.Success(OrdersResult{Owner: owner.Hex(), Orders: orders})
}

// listOrders walks the owner's pair index the same way Engine.GetAllOrders
// does, without needing a ledger or exchange.
func listOrders(ctx context.Context, s engine.OrderStore, owner common.Address) ([]OrderEntry, error) {
	pairs, err := s.TokenPairsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	entries := make([]OrderEntry, 0, len(pairs))
	for _, pairHash := range pairs {
		pair, _, err := s.TokenPair(ctx, pairHash)
		if err != nil {
			return nil, err
		}
		hashes, err := s.OrderHashes(ctx, owner, pairHash)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			order, found, err := s.Order(ctx, h)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			entries = append(entries, OrderEntry{
				OrderHash:      order.Hash.Hex(),
				TokenPairHash:  pairHash.Hex(),
				SellToken:      pair.SellToken.Hex(),
				BuyToken:       pair.BuyToken.Hex(),
				SellAmount:     order.SellAmount.String(),
				Interval:       order.Interval,
				StartTimestamp: order.StartTimestamp,
				LastExecution:  order.LastExecution,
				NextDue:        order.NextDue(),
			})
		}
	}
	return entries, nil
}
