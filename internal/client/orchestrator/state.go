package orchestrator

import (
	"gavlik-capital/internal/client/wallet"
)

// Phase 认证尝试阶段
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseInFlight Phase = "in-flight"
	PhaseCooldown Phase = "cooldown"
)

// State 认证尝试状态，只在内存中保存
type State struct {
	Phase                 Phase
	LastAddress           string
	IntentionalDisconnect bool
	Authenticated         bool
}

// SkipReason 跳过本次连接事件的原因，空串表示继续
type SkipReason string

const (
	Proceed                   SkipReason = ""
	SkipNotReady              SkipReason = "not-ready"
	SkipNotConnected          SkipReason = "not-connected"
	SkipAuthenticated         SkipReason = "authenticated"
	SkipNoAddress             SkipReason = "no-address"
	SkipInFlight              SkipReason = "in-flight"
	SkipIntentionalDisconnect SkipReason = "intentional-disconnect"
	SkipSameAddress           SkipReason = "same-address"
)

// Evaluate 判断当前钱包状态是否应该发起一次认证
func Evaluate(state State, snap wallet.Snapshot) SkipReason {
	switch {
	case !snap.Ready:
		return SkipNotReady
	case !snap.Connected:
		return SkipNotConnected
	case state.Authenticated:
		return SkipAuthenticated
	case snap.Address == "":
		return SkipNoAddress
	case state.Phase == PhaseInFlight:
		return SkipInFlight
	case state.IntentionalDisconnect:
		return SkipIntentionalDisconnect
	case state.LastAddress == snap.Address:
		// 同一地址刚尝试过，避免失败后无限重试
		return SkipSameAddress
	}
	return Proceed
}
