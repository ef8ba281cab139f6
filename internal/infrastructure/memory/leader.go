package memory

import "context"

// LocalLeader is leader election for a single-process deployment: the
// process always leads.
type LocalLeader struct{}

func NewLocalLeader() LocalLeader {
	return LocalLeader{}
}

func (LocalLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (LocalLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (LocalLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}
