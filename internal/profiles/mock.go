package profiles

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gosocial/realtime/internal/types"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, address string) (types.Profile, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(types.Profile), args.Error(1)
}
