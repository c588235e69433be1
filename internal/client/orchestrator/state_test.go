package orchestrator

import (
	"testing"

	"gavlik-capital/internal/client/wallet"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	connected := wallet.Snapshot{Ready: true, Connected: true, Address: "0xabc", ChainID: 1}

	tests := []struct {
		name  string
		state State
		snap  wallet.Snapshot
		want  SkipReason
	}{
		{name: "fresh connection", state: State{Phase: PhaseIdle}, snap: connected, want: Proceed},
		{name: "provider not ready", state: State{}, snap: wallet.Snapshot{Connected: true, Address: "0xabc"}, want: SkipNotReady},
		{name: "not connected", state: State{}, snap: wallet.Snapshot{Ready: true}, want: SkipNotConnected},
		{name: "already authenticated", state: State{Authenticated: true}, snap: connected, want: SkipAuthenticated},
		{name: "no address", state: State{}, snap: wallet.Snapshot{Ready: true, Connected: true}, want: SkipNoAddress},
		{name: "attempt in flight", state: State{Phase: PhaseInFlight, LastAddress: "0xdef"}, snap: connected, want: SkipInFlight},
		{name: "intentional disconnect", state: State{Phase: PhaseCooldown, IntentionalDisconnect: true}, snap: connected, want: SkipIntentionalDisconnect},
		{name: "same address as last attempt", state: State{Phase: PhaseIdle, LastAddress: "0xabc"}, snap: connected, want: SkipSameAddress},
		{name: "different address after attempt", state: State{Phase: PhaseIdle, LastAddress: "0xdef"}, snap: connected, want: Proceed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state, tt.snap))
		})
	}
}
