package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_LifecycleErrors(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrProductInactive, KindNotFound},
		{ErrInstallmentNotOffered, KindInvalidRequest},
		{ErrOrderSettled, KindInvalidRequest},
		{ErrIllegalTransition, KindInvalidRequest},
		{ErrUnsupportedProvider, KindInvalidRequest},
		{fmt.Errorf("create order: %w", ErrProductInactive), KindNotFound},
		{&GatewayError{Provider: "noop", Op: "create_payment", Err: errors.New("finished payment")}, KindGateway},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), tc.err.Error())
	}
}
