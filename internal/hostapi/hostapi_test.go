package hostapi

import (
	"context"
	"errors"
	"testing"

	"github.com/kingrea/driver-activity/internal/activity"
)

func TestGetDevicesSendsSentinelSearch(t *testing.T) {
	fake := NewFake().Reply(MethodGet, []map[string]string{{"id": "b123", "name": "Truck 9"}})
	devices, err := GetDevices(context.Background(), fake.API(), fake.DeviceSentinel())
	if err != nil {
		t.Fatalf("get devices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "b123" || devices[0].Name != "Truck 9" {
		t.Fatalf("devices = %+v", devices)
	}
	calls := fake.CallsTo(MethodGet)
	if len(calls) != 1 {
		t.Fatalf("get calls = %d", len(calls))
	}
	params, ok := calls[0].Params.(GetParams)
	if !ok {
		t.Fatalf("params type = %T", calls[0].Params)
	}
	if params.TypeName != TypeDevice || params.Search.ID != DefaultDeviceSentinel {
		t.Fatalf("params = %+v", params)
	}
}

func TestAddLogRecordReturnsConfirmation(t *testing.T) {
	fake := NewFake().Reply(MethodAdd, map[string]bool{"ok": true})
	rec, _ := activity.NewLogRecord("b123", "Fueling Vehicle")
	confirmation, err := AddLogRecord(context.Background(), fake, rec)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if string(confirmation) != `{"ok":true}` {
		t.Fatalf("confirmation = %s", confirmation)
	}
	params := fake.CallsTo(MethodAdd)[0].Params.(AddParams)
	if params.TypeName != TypeLogRecord || params.Entity != rec {
		t.Fatalf("params = %+v", params)
	}
}

func TestNilAPIIsUnavailable(t *testing.T) {
	if _, err := GetDevices(context.Background(), nil, "x"); !errors.Is(err, ErrHostUnavailable) {
		t.Fatalf("get err = %v", err)
	}
	if _, err := AddLogRecord(context.Background(), nil, activity.LogRecord{}); !errors.Is(err, ErrHostUnavailable) {
		t.Fatalf("add err = %v", err)
	}
}

func TestFakeFailureIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	fake := NewFake().Fail(MethodGet, boom)
	_, err := GetDevices(context.Background(), fake, "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestFakeQueuesResponders(t *testing.T) {
	boom := errors.New("boom")
	fake := NewFake().Fail(MethodGet, boom).Reply(MethodGet, []activity.Device{{ID: "d1"}})
	if _, err := GetDevices(context.Background(), fake, "x"); err == nil {
		t.Fatalf("first call should fail")
	}
	for i := 0; i < 2; i++ {
		devices, err := GetDevices(context.Background(), fake, "x")
		if err != nil || len(devices) != 1 {
			t.Fatalf("call %d: devices=%v err=%v", i, devices, err)
		}
	}
}

func TestFakeDisableAndReady(t *testing.T) {
	fake := NewFake().Disable()
	if fake.API() != nil {
		t.Fatalf("disabled fake must not expose an api")
	}
	count := 0
	fake.Ready(func() { count++ })
	fake.Ready(nil)
	fake.FireReady()
	fake.FireReady()
	if count != 1 {
		t.Fatalf("ready fired %d times", count)
	}
}
