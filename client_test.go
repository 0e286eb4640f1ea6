package wayback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMementoTargetResolveMementoURLTakesPrecedence(t *testing.T) {
	target := MementoTarget{
		MementoURL: "https://web.archive.org/web/20240115120000/https://example.com/",
		URL:        "https://other.example.com/",
		Timestamp:  time.Now(),
		Record:     &CaptureRecord{URL: "https://record.example.com/", Timestamp: time.Now()},
	}
	capturedURL, ts, err := target.resolve()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", capturedURL)
	require.Equal(t, 2024, ts.Year())
}

func TestMementoTargetResolveRecordTakesPrecedenceOverURL(t *testing.T) {
	recordTime := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	target := MementoTarget{
		Record: &CaptureRecord{URL: "https://record.example.com/", Timestamp: recordTime},
		URL:    "https://other.example.com/",
	}
	capturedURL, ts, err := target.resolve()
	require.NoError(t, err)
	require.Equal(t, "https://record.example.com/", capturedURL)
	require.True(t, ts.Equal(recordTime))
}

func TestMementoTargetResolveURLRequiresTimestamp(t *testing.T) {
	target := MementoTarget{URL: "https://example.com/"}
	_, _, err := target.resolve()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidMementoURL)
}

func TestMementoTargetResolveRejectsEmptyTarget(t *testing.T) {
	_, _, err := MementoTarget{}.resolve()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidMementoURL)
}

func TestClientCloseDoesNotCloseUnownedSession(t *testing.T) {
	session := NewSession(SessionConfig{})
	client := NewClientWithSession(session)

	require.NoError(t, client.Close())
	require.NoError(t, session.Close())
}

func TestClientCloseClosesOwnedSession(t *testing.T) {
	client := NewClient(ClientConfig{})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}
