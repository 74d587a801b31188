package intel

import (
	"context"
	"errors"
	"testing"

	"github.com/mispbot/mastodon-misp-bot/internal/config"
	"github.com/mispbot/mastodon-misp-bot/internal/misp"
	"github.com/mispbot/mastodon-misp-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMISP is a mock implementation of the MISP API
type MockMISP struct {
	mock.Mock
}

func (m *MockMISP) SearchAttributes(ctx context.Context, filter misp.AttributeFilter) ([]misp.Attribute, error) {
	args := m.Called(filter)
	attributes, _ := args.Get(0).([]misp.Attribute)
	return attributes, args.Error(1)
}

func (m *MockMISP) SearchEvents(ctx context.Context, filter misp.EventFilter) ([]misp.Event, error) {
	args := m.Called(filter)
	events, _ := args.Get(0).([]misp.Event)
	return events, args.Error(1)
}

func (m *MockMISP) AddSighting(ctx context.Context, sighting misp.Sighting) error {
	args := m.Called(sighting)
	return args.Error(0)
}

func testPolicy() Policy {
	return Policy{
		Tags:          []string{"tlp:white"},
		Published:     true,
		Limit:         20,
		InfoMaxLength: 30,
	}
}

func botnetEvent() misp.Event {
	return misp.Event{
		ID:            "1",
		UUID:          "E1",
		Date:          "2023-01-01",
		ThreatLevelID: "1",
		Analysis:      "2",
		Orgc:          misp.Organisation{Name: "CIRCL"},
		Tags:          []misp.Tag{{Name: "tlp:white"}},
	}
}

func TestService_Lookup(t *testing.T) {
	api := &MockMISP{}
	api.On("SearchAttributes", mock.MatchedBy(func(f misp.AttributeFilter) bool {
		return f.Value == "1.2.3.4" && f.Published && f.Limit == 20 && assert.ObjectsAreEqual([]string{"tlp:white"}, f.Tags)
	})).Return([]misp.Attribute{
		{Value: "1.2.3.4", Event: misp.EventRef{ID: "1", UUID: "E1", Info: "Botnet C2"}, Tags: []misp.Tag{{Name: " malware "}}},
	}, nil)
	api.On("SearchEvents", misp.EventFilter{UUID: "E1"}).Return([]misp.Event{botnetEvent()}, nil)

	results, err := NewService(api, testPolicy()).Lookup(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, []models.LookupResult{{
		EventID:       "1",
		EventUUID:     "E1",
		Organisation:  "CIRCL",
		Info:          "Botnet C2",
		Date:          "2023-01-01",
		ThreatLevel:   "high",
		AnalysisStage: "completed",
		ContextTags:   []string{"tlp:white", "malware"},
	}}, results)
	api.AssertExpectations(t)
}

func TestService_Lookup_DeduplicatesEvents(t *testing.T) {
	api := &MockMISP{}
	api.On("SearchAttributes", mock.Anything).Return([]misp.Attribute{
		{Value: "1.2.3.4", Event: misp.EventRef{ID: "1", UUID: "E1", Info: "Botnet C2"}},
		{Value: "1.2.3.4", Event: misp.EventRef{ID: "2", UUID: "E2", Info: "Phishing"}},
		{Value: "1.2.3.4", Event: misp.EventRef{ID: "1", UUID: "E1", Info: "Botnet C2"}, Tags: []misp.Tag{{Name: "ignored"}}},
	}, nil)
	api.On("SearchEvents", misp.EventFilter{UUID: "E1"}).Return([]misp.Event{botnetEvent()}, nil).Once()
	api.On("SearchEvents", misp.EventFilter{UUID: "E2"}).Return([]misp.Event{{UUID: "E2", ThreatLevelID: "3", Analysis: "0"}}, nil).Once()

	results, err := NewService(api, testPolicy()).Lookup(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "E1", results[0].EventUUID)
	assert.Equal(t, "E2", results[1].EventUUID)
	assert.NotContains(t, results[0].ContextTags, "ignored")
	assert.Equal(t, "low", results[1].ThreatLevel)
	assert.Equal(t, "initial", results[1].AnalysisStage)
	api.AssertExpectations(t)
}

func TestService_Lookup_NoMatches(t *testing.T) {
	api := &MockMISP{}
	api.On("SearchAttributes", mock.Anything).Return([]misp.Attribute{}, nil)

	results, err := NewService(api, testPolicy()).Lookup(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.Empty(t, results)
	api.AssertNotCalled(t, "SearchEvents", mock.Anything)
}

func TestService_Lookup_SearchErrorPropagates(t *testing.T) {
	api := &MockMISP{}
	searchErr := errors.New("connection refused")
	api.On("SearchAttributes", mock.Anything).Return(nil, searchErr)

	_, err := NewService(api, testPolicy()).Lookup(context.Background(), "1.2.3.4")
	assert.ErrorIs(t, err, searchErr)
}

func TestService_Lookup_MissingEvent(t *testing.T) {
	api := &MockMISP{}
	api.On("SearchAttributes", mock.Anything).Return([]misp.Attribute{
		{Event: misp.EventRef{UUID: "E9"}},
	}, nil)
	api.On("SearchEvents", misp.EventFilter{UUID: "E9"}).Return([]misp.Event{}, nil)

	_, err := NewService(api, testPolicy()).Lookup(context.Background(), "x")
	assert.ErrorIs(t, err, misp.ErrEventNotFound)
}

func TestService_RecordSighting(t *testing.T) {
	api := &MockMISP{}
	api.On("AddSighting", misp.Sighting{Value: "1.2.3.4", Source: "MISPbot alice"}).Return(nil)

	err := NewService(api, testPolicy()).RecordSighting(context.Background(), "1.2.3.4", "alice")
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestService_RecordSighting_Error(t *testing.T) {
	api := &MockMISP{}
	api.On("AddSighting", mock.Anything).Return(errors.New("forbidden"))

	err := NewService(api, testPolicy()).RecordSighting(context.Background(), "1.2.3.4", "alice")
	assert.Error(t, err)
}

func TestPolicyFromConfig(t *testing.T) {
	toIDs := false
	cfg := &config.Config{
		MISPToIDs:         &toIDs,
		MISPTags:          []string{"tlp:green"},
		MISPPublished:     true,
		MISPLimit:         5,
		MISPWarninglist:   true,
		MISPInfoMaxLength: 12,
	}

	assert.Equal(t, Policy{
		ToIDs:              &toIDs,
		Tags:               []string{"tlp:green"},
		Published:          true,
		Limit:              5,
		EnforceWarninglist: true,
		InfoMaxLength:      12,
	}, PolicyFromConfig(cfg))
}

func TestMergeTags(t *testing.T) {
	merged := mergeTags(
		[]misp.Tag{{Name: "tlp:white"}, {Name: " osint "}, {Name: ""}},
		[]misp.Tag{{Name: "osint"}, {Name: "tlp:white "}, {Name: "malware"}},
	)
	assert.Equal(t, []string{"tlp:white", "osint", "malware"}, merged)
}

func TestTruncateInfo(t *testing.T) {
	tests := []struct {
		name      string
		info      string
		maxLength int
		expected  string
	}{
		{name: "Short info", info: "Botnet C2", maxLength: 30, expected: "Botnet C2"},
		{name: "Long info", info: "A very long event description here", maxLength: 10, expected: "A very lon"},
		{name: "Embedded newlines", info: "Line one\r\nLine two", maxLength: 30, expected: "Line oneLine two"},
		{name: "Outer whitespace", info: "  padded  ", maxLength: 30, expected: "padded"},
		{name: "Multibyte", info: "Ünïcödé event", maxLength: 3, expected: "Ünï"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncateInfo(tt.info, tt.maxLength))
		})
	}
}
