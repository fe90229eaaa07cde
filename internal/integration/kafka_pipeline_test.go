//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/mapview"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/parquet"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/source"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
	"github.com/couchcryptid/crash-data-etl/internal/vocabulary"
)

const testTopic = "test-crash-records"

const sourceCSV = "Siniestro,Año,Mes,Día Numero,Hora,Estado,Ciudad Municipio,Calle,Latitud,Longitud,Nivel Daño Vehículo,Genero Lesionado\n" +
	"5001,2021,Marzo,3,09:15,Ciudad de México,Cuauhtémoc,Reforma,19.43,-99.15,Grave,Hombre\n" +
	"5002,2021,Marzo,4,18:40,Ciudad de México,Coyoacán,Universidad,19.35,-99.16,Leve,Mujer\n" +
	"5003,2021,Abril,1,22:05,Estado de México,Ecatepec,Central,19.60,-99.05,Medio,Hombre\n"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("crash-etl-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func writeSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2021"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2021", "percances.csv"), []byte(sourceCSV), 0o644))
	return dir
}

// TestPipeline_EndToEnd runs every stage against a local source directory and
// a real broker, then reads the published records back.
func TestPipeline_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	vocab, err := vocabulary.Default()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := t.TempDir()

	writer := kafka.NewWriter([]string{broker}, testTopic, logger)
	defer writer.Close()

	p := pipeline.New(pipeline.Stages{
		Fetcher: source.NewDirSource(writeSourceDir(t), source.Options{
			DictionaryMarker: vocab.Dictionary.FileMarker,
			FirstYear:        vocab.FirstYear,
		}, logger),
		Cleaner:   pipeline.NewCleaner(vocab, logger),
		Exporter:  parquet.NewExporter(logger),
		Maps:      mapview.NewRenderer(out, vocab.Region, logger),
		Publisher: writer,
	}, pipeline.Options{
		ExportPath: filepath.Join(out, "cleaned_crash_data.parquet"),
		MinRows:    1,
		Views:      []domain.ViewSpec{{Attribute: domain.ColSeverityLevel, MinSeverity: 1}},
	}, logger, observability.NewMetricsForTesting())

	report, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.Kept)
	assert.Equal(t, 1, report.Stats.Filtered)
	assert.Equal(t, 2, report.Published)
	require.Len(t, report.Artifacts, 1)
	assert.FileExists(t, report.Artifacts[0])

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	defer consumer.Close()

	got := map[string]domain.CrashRecord{}
	for range 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read published record")

		var rec domain.CrashRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, rec.RecordID, string(msg.Key))

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, rec.IncidentID, headers["incident_id"])
		assert.Equal(t, rec.Severity, headers["severity"])
		assert.Equal(t, report.StartedAt.UTC().Format(time.RFC3339), headers["exported_at"])
		got[rec.IncidentID] = rec
	}

	require.Contains(t, got, "5001")
	require.Contains(t, got, "5002")
	assert.Equal(t, "high", got["5001"].Severity)
	assert.Equal(t, 4, got["5001"].SeverityLevel)
	assert.Equal(t, "female", *got["5002"].InjuredGender)
}

// TestPipeline_PublishUnreachableBroker keeps the export when the broker is
// down and reports the publish stage as failed.
func TestPipeline_PublishUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	vocab, err := vocabulary.Default()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := t.TempDir()
	exportPath := filepath.Join(out, "cleaned_crash_data.parquet")

	writer := kafka.NewWriter([]string{"127.0.0.1:1"}, testTopic, logger)
	defer writer.Close()

	p := pipeline.New(pipeline.Stages{
		Fetcher: source.NewDirSource(writeSourceDir(t), source.Options{
			DictionaryMarker: vocab.Dictionary.FileMarker,
			FirstYear:        vocab.FirstYear,
		}, logger),
		Cleaner:   pipeline.NewCleaner(vocab, logger),
		Exporter:  parquet.NewExporter(logger),
		Maps:      mapview.NewRenderer(out, vocab.Region, logger),
		Publisher: writer,
	}, pipeline.Options{ExportPath: exportPath, MinRows: 1}, logger, observability.NewMetricsForTesting())

	report, err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.StagePublish, report.FailedStage)
	assert.FileExists(t, exportPath)
}
