package mocks

import "time"

type MetricServerMock struct {
	ObserveRepositoryFn    func(repo string, scanned, eligible int, eligibleBytes int64, took time.Duration)
	IncRepositoryFailureFn func(repo string)
	IncDecisionFn          func(policy, reason string)
	SetTransferEstimateFn  func(seconds float64)
	WriteTextfileFn        func(path string) error
}

func (metricsMock MetricServerMock) IsEnabled() bool {
	return true
}

func (metricsMock MetricServerMock) ObserveRepository(repo string, scanned, eligible int, eligibleBytes int64,
	took time.Duration,
) {
	if metricsMock.ObserveRepositoryFn != nil {
		metricsMock.ObserveRepositoryFn(repo, scanned, eligible, eligibleBytes, took)
	}
}

func (metricsMock MetricServerMock) IncRepositoryFailure(repo string) {
	if metricsMock.IncRepositoryFailureFn != nil {
		metricsMock.IncRepositoryFailureFn(repo)
	}
}

func (metricsMock MetricServerMock) IncDecision(policy, reason string) {
	if metricsMock.IncDecisionFn != nil {
		metricsMock.IncDecisionFn(policy, reason)
	}
}

func (metricsMock MetricServerMock) SetTransferEstimate(seconds float64) {
	if metricsMock.SetTransferEstimateFn != nil {
		metricsMock.SetTransferEstimateFn(seconds)
	}
}

func (metricsMock MetricServerMock) WriteTextfile(path string) error {
	if metricsMock.WriteTextfileFn != nil {
		return metricsMock.WriteTextfileFn(path)
	}

	return nil
}
