package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/config"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/logging"
	"github.com/efreitasn/papertrade/internal/service"
)

// replaySummary is the per-account result printed after a replay.
type replaySummary struct {
	Account    string            `json:"account"`
	AccountID  string            `json:"account_id"`
	Pending    int               `json:"pending_orders"`
	Operations int               `json:"operations"`
	Portfolio  *engine.Portfolio `json:"portfolio"`
}

type replayOutput struct {
	Clock    string          `json:"clock"`
	Ticks    int64           `json:"ticks"`
	Accounts []replaySummary `json:"accounts"`
}

func newReplayCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Run a scenario script offline and print the resulting portfolios",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.ScenarioFile = args[0]

			logger, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			return replay(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level for the replay run")
	return cmd
}

func replay(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	a, err := buildApp(ctx, cfg, logger, buildOptions{offline: true})
	if err != nil {
		return err
	}
	defer a.close()

	for i, st := range a.scenario.Script {
		if err := a.runStep(ctx, st); err != nil {
			return fmt.Errorf("script step %d: %w", i, err)
		}
	}

	clock := a.engine.Clock()
	result := replayOutput{
		Clock:    clock.Now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Ticks:    clock.Ticks,
		Accounts: make([]replaySummary, 0, len(a.scenario.Accounts)),
	}
	for _, sa := range a.scenario.Accounts {
		id := a.accounts[sa.Name]
		portfolio, err := a.services.Operations.GetPortfolio(id)
		if err != nil {
			return err
		}
		pending, err := a.services.Orders.ListOrders(id)
		if err != nil {
			return err
		}
		ops, err := a.services.Operations.GetOperations(id, "", "")
		if err != nil {
			return err
		}
		result.Accounts = append(result.Accounts, replaySummary{
			Account:    sa.Name,
			AccountID:  id,
			Pending:    len(pending),
			Operations: len(ops),
			Portfolio:  portfolio,
		})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// runStep applies one scripted action. Rejected orders are logged and the
// replay goes on, the way a live client would keep trading.
func (a *app) runStep(ctx context.Context, st config.ScriptStep) error {
	switch {
	case st.Tick > 0:
		_, err := a.services.Simulation.AdvanceTick(ctx, st.Tick)
		return err
	case st.Order != nil:
		o := st.Order
		order, err := a.services.Orders.SubmitOrder(ctx, service.SubmitOrderRequest{
			AccountID:    a.accounts[o.Account],
			OrderID:      o.OrderID,
			InstrumentID: o.InstrumentID,
			Direction:    o.Direction,
			Kind:         o.Kind,
			Quantity:     o.Quantity,
			Price:        o.Price,
		})
		if err != nil {
			a.logger.Warn("scripted order rejected", zap.String("account", o.Account), zap.Error(err))
			return nil
		}
		a.logger.Info("scripted order submitted", zap.String("account", o.Account), zap.String("order_id", order.OrderID))
		return nil
	case st.Cancel != nil:
		_, err := a.services.Orders.CancelOrder(ctx, a.accounts[st.Cancel.Account], st.Cancel.OrderID)
		if err != nil {
			a.logger.Warn("scripted cancel rejected", zap.String("account", st.Cancel.Account), zap.Error(err))
		}
		return nil
	case st.PayIn != nil:
		_, err := a.services.Accounts.PayIn(ctx, a.accounts[st.PayIn.Account], st.PayIn.Amount, st.PayIn.Currency)
		return err
	}
	return nil
}
