package epp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorDetail(t *testing.T) {
	t.Run("surfaces the proxy detail", func(t *testing.T) {
		err := &RPCError{Method: "domain.create", Detail: "domain name is reserved"}
		assert.Equal(t, "domain name is reserved", ErrorDetail(err))
	})

	t.Run("unwraps through wrapping", func(t *testing.T) {
		err := fmt.Errorf("process order: %w", &RPCError{Method: "domain.renew", Detail: "not renewable"})
		assert.Equal(t, "not renewable", ErrorDetail(err))
	})

	t.Run("hides transport faults", func(t *testing.T) {
		assert.Equal(t, "registry temporarily unavailable", ErrorDetail(errors.New("dial tcp: refused")))
		assert.Equal(t, "registry temporarily unavailable", ErrorDetail(context.DeadlineExceeded))
	})
}

func TestSnapshotHelpers(t *testing.T) {
	t.Run("redemption detection", func(t *testing.T) {
		s := &DomainSnapshot{RGPState: []RGPState{RGPAddPeriod}}
		assert.False(t, s.InRedemption())

		s.RGPState = append(s.RGPState, RGPRedemptionPeriod)
		assert.True(t, s.InRedemption())
	})

	t.Run("status matching", func(t *testing.T) {
		s := &DomainSnapshot{Statuses: []DomainStatus{StatusClientTransferProhibited, StatusTransferPeriod}}
		assert.True(t, s.HasStatus(StatusClientTransferProhibited))
		assert.True(t, s.HasStatus(StatusPendingDelete, StatusTransferPeriod))
		assert.False(t, s.HasStatus(StatusPendingDelete))
		assert.False(t, s.HasStatus())
	})
}
