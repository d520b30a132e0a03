package reporter

import "github.com/The-Promised-Neverland/counterqueue/internal/models"

// BuildPayload shapes one component sample. It has no side effects.
func BuildPayload(counts models.QueueCounts, agent models.AgentInfo) models.Payload {
	return models.Payload{
		Agent: agent,
		Components: []models.Component{
			{
				Name:     agent.Host,
				GUID:     models.ComponentGUID,
				Duration: models.ReportDuration,
				Metrics: map[string]int64{
					models.MetricTodoCount:   counts.Todo,
					models.MetricDoingCount:  counts.Doing,
					models.MetricFailedCount: counts.Failed,
				},
			},
		},
	}
}

// CountsFromPayload recovers the queue counts of the first component.
func CountsFromPayload(p models.Payload) (models.QueueCounts, bool) {
	if len(p.Components) == 0 {
		return models.QueueCounts{}, false
	}
	m := p.Components[0].Metrics
	todo, ok1 := m[models.MetricTodoCount]
	doing, ok2 := m[models.MetricDoingCount]
	failed, ok3 := m[models.MetricFailedCount]
	if !ok1 || !ok2 || !ok3 {
		return models.QueueCounts{}, false
	}
	return models.QueueCounts{Todo: todo, Doing: doing, Failed: failed}, true
}
