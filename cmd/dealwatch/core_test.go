package main

import (
	"testing"

	"github.com/MikeSquared-Agency/dealwatch/internal/config"
	"github.com/MikeSquared-Agency/dealwatch/internal/detector"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
)

func TestEngineAndRouterShareConfidenceHigh(t *testing.T) {
	tests := []struct {
		high        string
		wantAction  router.Action
		wantConfirm bool
	}{
		{"0.7", router.ActionAutoUpdate, false},
		{"0.8", router.ActionFlagForConfirmation, true},
	}
	for _, tt := range tests {
		t.Run("CONFIDENCE_HIGH="+tt.high, func(t *testing.T) {
			t.Setenv("CONFIDENCE_HIGH", tt.high)
			cfg := config.Load()

			res := newEngine(cfg, rules.DefaultRules()).Evaluate([]detector.Signal{
				{Type: detector.SignalCallbackRequested, Confidence: 0.6},
			})
			d := router.Route(res.Confidence, routingConfig(cfg))

			if d.Action != tt.wantAction {
				t.Errorf("action = %s at confidence %v, want %s", d.Action, res.Confidence, tt.wantAction)
			}
			if res.RequiresConfirmation != tt.wantConfirm {
				t.Errorf("requires_confirmation = %v at confidence %v, want %v", res.RequiresConfirmation, res.Confidence, tt.wantConfirm)
			}
		})
	}
}
