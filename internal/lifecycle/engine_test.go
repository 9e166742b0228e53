package lifecycle

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadwatch/roadwatch/internal/domain"
)

const day = 24 * time.Hour

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ev(item string, status domain.Status, ts time.Time) domain.StatusEvent {
	return domain.StatusEvent{ItemID: item, Status: status, Timestamp: ts}
}

func raw(item, status string, ts time.Time) domain.RawStatusEvent {
	return domain.RawStatusEvent{ItemID: item, Status: status, Timestamp: ts}
}

func TestGroupHistoryByItem_GroupsAndSorts(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	events := []domain.StatusEvent{
		ev("b", domain.StatusResolved, base.Add(3*day)),
		ev("a", domain.StatusInProgress, base.Add(2*day)),
		ev("c", domain.StatusPending, base),
		ev("a", domain.StatusPending, base),
		ev("b", domain.StatusPending, base.Add(day)),
	}

	histories := GroupHistoryByItem(events)

	require.Len(t, histories, 3)
	for id, h := range histories {
		assert.Equal(t, id, h.ItemID)
		for i := 1; i < len(h.Events); i++ {
			assert.False(t, h.Events[i].Timestamp.Before(h.Events[i-1].Timestamp), "history of %s not sorted", id)
		}
	}
	assert.Equal(t, domain.StatusPending, histories["a"].Events[0].Status)
	assert.Equal(t, domain.StatusInProgress, histories["a"].Events[1].Status)
	assert.Len(t, histories["c"].Events, 1)
}

func TestGroupHistoryByItem_StableForEqualTimestamps(t *testing.T) {
	ts := at("2024-01-01T00:00:00Z")
	events := []domain.StatusEvent{
		ev("a", domain.StatusInProgress, ts),
		ev("a", domain.StatusPending, ts),
		ev("a", domain.StatusRejected, ts),
	}

	h := GroupHistoryByItem(events)["a"]

	require.Len(t, h.Events, 3)
	assert.Equal(t, domain.StatusInProgress, h.Events[0].Status)
	assert.Equal(t, domain.StatusPending, h.Events[1].Status)
	assert.Equal(t, domain.StatusRejected, h.Events[2].Status)
}

func TestGroupHistoryByItem_Empty(t *testing.T) {
	assert.Empty(t, GroupHistoryByItem(nil))
	assert.Empty(t, GroupHistoryByItem([]domain.StatusEvent{}))
}

func TestGroupHistoryByItem_DoesNotReorderInput(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	events := []domain.StatusEvent{
		ev("a", domain.StatusResolved, base.Add(day)),
		ev("a", domain.StatusPending, base),
	}

	GroupHistoryByItem(events)

	assert.Equal(t, domain.StatusResolved, events[0].Status)
}

func TestCurrentStatus_DefaultsToPending(t *testing.T) {
	assert.Equal(t, domain.StatusPending, CurrentStatus(domain.ItemHistory{ItemID: "x"}))
}

func TestCurrentStatus_IsLastEvent(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("x", domain.StatusResolved, base.Add(2*day)),
		ev("x", domain.StatusPending, base),
		ev("x", domain.StatusInProgress, base.Add(day)),
	})["x"]

	assert.Equal(t, domain.StatusResolved, CurrentStatus(h))
}

func TestCurrentStatus_PermitsRegression(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("x", domain.StatusPending, base),
		ev("x", domain.StatusResolved, base.Add(day)),
		ev("x", domain.StatusPending, base.Add(2*day)),
	})["x"]

	assert.Equal(t, domain.StatusPending, CurrentStatus(h))
}

func TestComputeTransitionMetrics_FullLifecycle(t *testing.T) {
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("X", domain.StatusPending, at("2024-01-01T00:00:00Z")),
		ev("X", domain.StatusInProgress, at("2024-01-03T00:00:00Z")),
		ev("X", domain.StatusResolved, at("2024-01-10T00:00:00Z")),
	})["X"]

	m := ComputeTransitionMetrics(h, at("2024-02-01T00:00:00Z"))

	assert.Equal(t, domain.SomeDuration(2*day), m.PendingToInProgressDuration)
	assert.Equal(t, domain.SomeDuration(7*day), m.InProgressToResolvedDuration)
	assert.Equal(t, domain.SomeDuration(9*day), m.TotalDuration)
	assert.False(t, m.HasAnomaly())
}

func TestComputeTransitionMetrics_OpenItem(t *testing.T) {
	now := at("2024-03-10T12:00:00Z")
	h := domain.ItemHistory{ItemID: "Y", Events: []domain.StatusEvent{
		ev("Y", domain.StatusPending, now.Add(-5*day)),
	}}

	m := ComputeTransitionMetrics(h, now)

	assert.Equal(t, domain.SomeDuration(5*day), m.TotalDuration)
	assert.False(t, m.PendingToInProgressDuration.Valid)
	assert.False(t, m.InProgressToResolvedDuration.Valid)
}

func TestComputeTransitionMetrics_UsesFirstOccurrence(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("z", domain.StatusPending, base),
		ev("z", domain.StatusInProgress, base.Add(day)),
		ev("z", domain.StatusPending, base.Add(2*day)),
		ev("z", domain.StatusInProgress, base.Add(3*day)),
		ev("z", domain.StatusResolved, base.Add(4*day)),
		ev("z", domain.StatusResolved, base.Add(6*day)),
	})["z"]

	m := ComputeTransitionMetrics(h, base.Add(10*day))

	assert.Equal(t, domain.SomeDuration(day), m.PendingToInProgressDuration)
	assert.Equal(t, domain.SomeDuration(3*day), m.InProgressToResolvedDuration)
	assert.Equal(t, domain.SomeDuration(4*day), m.TotalDuration)
}

func TestComputeTransitionMetrics_NoPending(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("r", domain.StatusInProgress, base),
		ev("r", domain.StatusResolved, base.Add(day)),
	})["r"]

	m := ComputeTransitionMetrics(h, base.Add(2*day))

	assert.False(t, m.PendingToInProgressDuration.Valid)
	assert.Equal(t, domain.SomeDuration(day), m.InProgressToResolvedDuration)
	assert.False(t, m.TotalDuration.Valid)
}

func TestComputeTransitionMetrics_RejectedIgnored(t *testing.T) {
	base := at("2024-01-01T00:00:00Z")
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("r", domain.StatusPending, base),
		ev("r", domain.StatusRejected, base.Add(day)),
	})["r"]

	m := ComputeTransitionMetrics(h, base.Add(3*day))

	assert.False(t, m.PendingToInProgressDuration.Valid)
	assert.False(t, m.InProgressToResolvedDuration.Valid)
	assert.Equal(t, domain.SomeDuration(3*day), m.TotalDuration)
}

func TestComputeTransitionMetrics_EmptyHistory(t *testing.T) {
	m := ComputeTransitionMetrics(domain.ItemHistory{ItemID: "e"}, at("2024-01-01T00:00:00Z"))

	assert.Equal(t, "e", m.ItemID)
	assert.False(t, m.PendingToInProgressDuration.Valid)
	assert.False(t, m.InProgressToResolvedDuration.Valid)
	assert.False(t, m.TotalDuration.Valid)
	assert.Empty(t, m.Anomalies)
}

func TestComputeTransitionMetrics_NegativeSpanFlagged(t *testing.T) {
	base := at("2024-01-05T00:00:00Z")
	h := GroupHistoryByItem([]domain.StatusEvent{
		ev("n", domain.StatusPending, base),
		ev("n", domain.StatusInProgress, base.Add(-2*day)),
	})["n"]

	m := ComputeTransitionMetrics(h, base.Add(day))

	assert.False(t, m.PendingToInProgressDuration.Valid, "negative span must not be emitted")
	require.Len(t, m.Anomalies, 1)
	assert.Equal(t, domain.AnomalyNegativeDuration, m.Anomalies[0].Kind)
	assert.Equal(t, domain.FieldPendingToInProgress, m.Anomalies[0].Field)
	assert.Equal(t, "n", m.Anomalies[0].ItemID)
	assert.Equal(t, domain.SomeDuration(day), m.TotalDuration)
}

func TestComputeTransitionMetrics_FutureEventFlagged(t *testing.T) {
	now := at("2024-01-01T00:00:00Z")
	h := domain.ItemHistory{ItemID: "f", Events: []domain.StatusEvent{
		ev("f", domain.StatusPending, now.Add(time.Hour)),
	}}

	m := ComputeTransitionMetrics(h, now)

	assert.False(t, m.TotalDuration.Valid)
	require.Len(t, m.Anomalies, 1)
	assert.Equal(t, domain.FieldTotal, m.Anomalies[0].Field)
}

func TestComputeFleetAverages_FieldsAreIndependent(t *testing.T) {
	metrics := []domain.TransitionMetric{
		{ItemID: "A", PendingToInProgressDuration: domain.SomeDuration(2 * day)},
		{ItemID: "B", InProgressToResolvedDuration: domain.SomeDuration(4 * day)},
		{
			ItemID:                       "C",
			PendingToInProgressDuration:  domain.SomeDuration(6 * day),
			InProgressToResolvedDuration: domain.SomeDuration(8 * day),
		},
	}

	avg := ComputeFleetAverages(metrics)

	assert.Equal(t, domain.SomeDuration(4*day), avg.PendingToInProgress)
	assert.Equal(t, domain.SomeDuration(6*day), avg.InProgressToResolved)
	assert.False(t, avg.Total.Valid, "no item defines total")
	assert.Equal(t, 2, avg.PendingToInProgressCount)
	assert.Equal(t, 2, avg.InProgressToResolvedCount)
	assert.Equal(t, 0, avg.TotalCount)
}

func TestComputeFleetAverages_Empty(t *testing.T) {
	avg := ComputeFleetAverages(nil)

	assert.False(t, avg.PendingToInProgress.Valid)
	assert.False(t, avg.InProgressToResolved.Valid)
	assert.False(t, avg.Total.Valid)
}

func TestComputeFleetAverages_MillisecondPrecision(t *testing.T) {
	metrics := []domain.TransitionMetric{
		{TotalDuration: domain.SomeDuration(1*time.Millisecond + 900*time.Microsecond)},
		{TotalDuration: domain.SomeDuration(2 * time.Millisecond)},
	}

	avg := ComputeFleetAverages(metrics)

	// 1ms + 2ms over two items, sub-millisecond parts dropped
	assert.Equal(t, domain.SomeDuration(time.Millisecond), avg.Total)
}

func TestNormalize_ExcludesMalformedRecords(t *testing.T) {
	ts := at("2024-01-01T00:00:00Z")
	raws := []domain.RawStatusEvent{
		raw("a", "en_attente", ts),
		raw("", "en_attente", ts),
		raw("b", "planifie", ts),
		{ItemID: "c", Status: "resolu", RawTimestamp: "yesterday"},
		{ItemID: "d", Status: "resolu"},
		raw("a", "2", ts.Add(day)),
	}

	events, anomalies := Normalize(raws)

	require.Len(t, events, 2)
	assert.Equal(t, domain.StatusPending, events[0].Status)
	assert.Equal(t, domain.StatusInProgress, events[1].Status)

	require.Len(t, anomalies, 4)
	indexes := []int{anomalies[0].Index, anomalies[1].Index, anomalies[2].Index, anomalies[3].Index}
	assert.Equal(t, []int{1, 2, 3, 4}, indexes)
	for _, a := range anomalies {
		assert.Equal(t, domain.AnomalyMalformedEvent, a.Kind)
	}
	assert.Contains(t, anomalies[0].Message, "missing item id")
	assert.Contains(t, anomalies[1].Message, "planifie")
	assert.Contains(t, anomalies[2].Message, "yesterday")
	assert.Contains(t, anomalies[3].Message, "missing timestamp")
}

func TestBuildReport_NilInput(t *testing.T) {
	_, err := BuildReport(nil)
	assert.ErrorIs(t, err, ErrNilInput)
}

func TestBuildReport_Pipeline(t *testing.T) {
	now := at("2024-01-20T00:00:00Z")
	in := &Input{
		Events: []domain.RawStatusEvent{
			raw("X", "resolu", at("2024-01-10T00:00:00Z")),
			raw("X", "en_attente", at("2024-01-01T00:00:00Z")),
			raw("X", "en_cours", at("2024-01-03T00:00:00Z")),
			raw("Y", "en_attente", now.Add(-5*day)),
			raw("", "en_cours", now),
		},
		ActiveItemIDs: []string{"X", "Y", "Z"},
		Now:           now,
	}

	report, err := BuildReport(in)
	require.NoError(t, err)

	require.Len(t, report.Items, 3)
	assert.Equal(t, []string{"X", "Y", "Z"}, []string{report.Items[0].ItemID, report.Items[1].ItemID, report.Items[2].ItemID})

	x, ok := report.Item("X")
	require.True(t, ok)
	assert.Equal(t, domain.StatusResolved, x.Status)
	assert.Equal(t, "Résolu", x.StatusLabel)
	assert.Equal(t, 100, x.Avancement)
	assert.Len(t, x.History, 3)
	assert.Equal(t, "2j", x.Display.PendingToInProgress)
	assert.Equal(t, "7j", x.Display.InProgressToResolved)
	assert.Equal(t, "9j", x.Display.Total)

	y, _ := report.Item("Y")
	assert.Equal(t, domain.StatusPending, y.Status)
	assert.Equal(t, "5j", y.Display.Total)
	assert.Equal(t, Placeholder, y.Display.PendingToInProgress)

	z, _ := report.Item("Z")
	assert.Equal(t, domain.StatusPending, z.Status)
	assert.Empty(t, z.History)
	assert.Equal(t, Placeholder, z.Display.Total)

	_, ok = report.Item("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, report.StatusCounts[domain.StatusPending])
	assert.Equal(t, 1, report.StatusCounts[domain.StatusResolved])
	assert.Equal(t, 0, report.StatusCounts[domain.StatusRejected])

	// total: X=9d, Y=5d -> 7d
	assert.Equal(t, domain.SomeDuration(7*day), report.Averages.Total)
	assert.Equal(t, "7j", report.AverageDisplay.Total)

	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, 4, report.Anomalies[0].Index)

	assert.Equal(t, map[string]domain.Status{
		"X": domain.StatusResolved,
		"Y": domain.StatusPending,
		"Z": domain.StatusPending,
	}, report.CurrentStatuses())
}

func TestBuildReport_AnomaliesCollected(t *testing.T) {
	base := at("2024-01-05T00:00:00Z")
	report, err := BuildReport(&Input{
		Events: []domain.RawStatusEvent{
			raw("n", "en_attente", base),
			raw("n", "en_cours", base.Add(-day)),
		},
		Now: base.Add(day),
	})
	require.NoError(t, err)

	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, domain.AnomalyNegativeDuration, report.Anomalies[0].Kind)

	n, _ := report.Item("n")
	assert.True(t, n.Metrics.HasAnomaly())
	assert.Equal(t, Placeholder, n.Display.PendingToInProgress)
}

func TestBuildReport_Idempotent(t *testing.T) {
	now := at("2024-01-20T00:00:00Z")
	in := &Input{
		Events: []domain.RawStatusEvent{
			raw("b", "en_attente", at("2024-01-02T00:00:00Z")),
			raw("a", "en_attente", at("2024-01-01T00:00:00Z")),
			raw("a", "en_cours", at("2024-01-03T00:00:00Z")),
			raw("b", "rejete", at("2024-01-04T00:00:00Z")),
			raw("c", "bogus", now),
		},
		ActiveItemIDs: []string{"a", "b", "d"},
		Now:           now,
	}

	first, err := BuildReport(in)
	require.NoError(t, err)
	second, err := BuildReport(in)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
}

func TestSummarize(t *testing.T) {
	now := at("2024-01-20T00:00:00Z")
	report, err := BuildReport(&Input{
		Events: []domain.RawStatusEvent{
			raw("a", "en_attente", now.Add(-3*day)),
			raw("a", "resolu", now.Add(-day)),
			raw("b", "en_attente", now.Add(-2*day)),
		},
		ActiveItemIDs: []string{"a", "b", "c", "d"},
		Now:           now,
	})
	require.NoError(t, err)

	recap := Summarize(report, domain.CatalogueTotals{Count: 4, Surface: 155, Budget: 24500000})

	assert.Equal(t, 4, recap.TotalPoints)
	assert.Equal(t, 155.0, recap.TotalSurface)
	assert.Equal(t, 25, recap.Avancement)
	assert.Equal(t, 3, recap.StatusCounts[domain.StatusPending])
	assert.Equal(t, 1, recap.StatusCounts[domain.StatusResolved])
	assert.Equal(t, 0, recap.StatusCounts[domain.StatusInProgress])
	assert.Equal(t, now, recap.GeneratedAt)
}

func TestSummarize_NoData(t *testing.T) {
	recap := Summarize(nil, domain.CatalogueTotals{})

	assert.Equal(t, 0, recap.TotalPoints)
	assert.Equal(t, 0, recap.Avancement)
	assert.Len(t, recap.StatusCounts, 4)
}

func BenchmarkBuildReport(b *testing.B) {
	base := at("2024-01-01T00:00:00Z")
	var events []domain.RawStatusEvent
	for i := 0; i < 1000; i++ {
		id := "item-" + strconv.Itoa(i)
		events = append(events,
			raw(id, "en_attente", base),
			raw(id, "en_cours", base.Add(day)),
			raw(id, "resolu", base.Add(3*day)),
		)
	}
	in := &Input{Events: events, Now: base.Add(10 * day)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildReport(in)
	}
}
