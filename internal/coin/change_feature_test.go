package coin_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"fsanano/vending/internal/coin"

	"github.com/cucumber/godog"
)

type changeTestContext struct {
	breakdown coin.Breakdown
	err       error
}

func (c *changeTestContext) reset() {
	c.breakdown = nil
	c.err = nil
}

func (c *changeTestContext) changeIsComputedFor(exchange int) error {
	c.breakdown, c.err = coin.ChangeFor(exchange)
	return nil
}

func (c *changeTestContext) noCoinsAreReturned() error {
	if c.err != nil {
		return fmt.Errorf("expected breakdown but got error: %v", c.err)
	}
	if len(c.breakdown) != 0 {
		return fmt.Errorf("expected no coins, got %v", c.breakdown)
	}
	return nil
}

func (c *changeTestContext) theCoinsAre(table *godog.Table) error {
	if c.err != nil {
		return fmt.Errorf("expected breakdown but got error: %v", c.err)
	}
	var want coin.Breakdown
	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		d, err := strconv.Atoi(row.Cells[0].Value)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return err
		}
		want = append(want, coin.Count{Denomination: d, Count: n})
	}
	if len(want) != len(c.breakdown) {
		return fmt.Errorf("expected %v, got %v", want, c.breakdown)
	}
	for i := range want {
		if want[i] != c.breakdown[i] {
			return fmt.Errorf("expected %v, got %v", want, c.breakdown)
		}
	}
	return nil
}

func (c *changeTestContext) theCoinsTotal(total int) error {
	if got := c.breakdown.Total(); got != total {
		return fmt.Errorf("expected total %d, got %d", total, got)
	}
	return nil
}

func (c *changeTestContext) theAmountIsRefused() error {
	if !errors.Is(c.err, coin.ErrUnrepresentable) {
		return fmt.Errorf("expected ErrUnrepresentable, got %v", c.err)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &changeTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^change is computed for (\d+)$`, tc.changeIsComputedFor)
	ctx.Step(`^no coins are returned$`, tc.noCoinsAreReturned)
	ctx.Step(`^the coins are:$`, tc.theCoinsAre)
	ctx.Step(`^the coins total (\d+)$`, tc.theCoinsTotal)
	ctx.Step(`^the amount is refused$`, tc.theAmountIsRefused)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/change.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
