package iio

import (
	"testing"

	"go.viam.com/iio/testutils"
)

type fakeChannel = testutils.FakeChannel

func accelChannels() []fakeChannel {
	return append(testutils.AxisChannels("in_accel"),
		fakeChannel{Name: "in_timestamp", Index: 3, Type: "le:s64/64>>0"})
}

func makeFakeDevice(t *testing.T, root string, n int, name string, channels []fakeChannel) string {
	t.Helper()
	return testutils.MakeFakeDevice(t, root, n, name, channels)
}

func makeFakeTrigger(t *testing.T, root string, n int, name string) string {
	t.Helper()
	return testutils.MakeFakeTrigger(t, root, n, name)
}
