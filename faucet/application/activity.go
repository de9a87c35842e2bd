package application

import (
	"context"
	"encoding/json"

	"faucet-gateway/faucet/domain"
)

const (
	activityKey      = "faucet:drip:logs"
	activityCapacity = 500
)

// ActivityLog é o log limitado de drips recentes (mais novo primeiro).
// Observabilidade best-effort, não é ledger.
type ActivityLog struct {
	quota    Quota
	capacity int
}

func NewActivityLog(quota Quota) *ActivityLog {
	return &ActivityLog{quota: quota, capacity: activityCapacity}
}

func (a *ActivityLog) Append(ctx context.Context, rec domain.DripRecord) error {
	if !a.quota.enabled() {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return a.quota.Store.PushCapped(ctx, activityKey, string(b), a.capacity)
}
