package app

import (
	"context"
	"fmt"

	gantryerrors "gantry/internal/errors"
	"gantry/internal/source"
	"gantry/pkg/pipeline"
)

// CheckoutStageName is the implicit first stage added when the declaration
// carries a checkout block.
const CheckoutStageName = "checkout"

// checkoutStage clones the source repository into the working directory
// before any declared stage runs. It never carries a gate: a failed clone
// leaves nothing for later stages to work on.
type checkoutStage struct {
	cfg     *pipeline.Checkout
	cloner  source.Cloner
	workdir string
}

func newCheckoutStage(cfg *pipeline.Checkout, cloner source.Cloner, workdir string) *checkoutStage {
	return &checkoutStage{cfg: cfg, cloner: cloner, workdir: workdir}
}

func (s *checkoutStage) Name() string {
	return CheckoutStageName
}

func (s *checkoutStage) Gate() *pipeline.Gate {
	return nil
}

func (s *checkoutStage) Execute(ctx context.Context) error {
	if err := s.cloner.Clone(ctx, s.cfg.URL, s.cfg.Ref, s.workdir); err != nil {
		return gantryerrors.NewCheckoutError(
			fmt.Sprintf("Failed to check out %s", s.cfg.URL),
			err.Error(),
			"Check the repository URL, ref, and access token",
			err,
		)
	}
	return nil
}
