//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test and
// returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("anomaly-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster
// controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeDataset writes a 1991-1993 monthly dataset over Europe to dir. Every
// cell is 283.15 K plus 0.5 K per year since 1991, so against a 1991-1992
// reference the annual anomalies are -0.25, 0.25 and 0.75.
func writeDataset(t *testing.T, dir string) {
	t.Helper()
	times := domain.MonthlyTimes(
		time.Date(1991, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1993, time.December, 1, 0, 0, 0, 0, time.UTC),
	)
	lats := []float64{65, 55, 45, 35}
	lons := []float64{0, 10, 20, 30}
	data := make([]domain.Value, 0, len(times)*len(lats)*len(lons))
	for _, ts := range times {
		for range lats {
			for range lons {
				data = append(data, domain.Some(283.15+0.5*float64(ts.Year()-1991)))
			}
		}
	}
	t2m := domain.MustField("t2m", []domain.Axis{
		domain.TimeAxis(times...),
		domain.NumericAxis("latitude", lats...),
		domain.NumericAxis("longitude", lons...),
	}, data).WithUnits("K")

	mask := make([]float64, len(lats)*len(lons))
	for i := range mask {
		mask[i] = float64(i % 2)
	}
	lsm := domain.MustField("lsm", []domain.Axis{
		domain.NumericAxis("latitude", lats...),
		domain.NumericAxis("longitude", lons...),
	}, domain.FromFloats(mask))

	require.NoError(t, netcdf.Write(filepath.Join(dir, "era5.nc"), t2m, lsm))
}
