package vault

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/custodia/internal/metrics"
	"github.com/dropDatabas3/custodia/internal/observability/logger"
)

// maxLogLine limita el buffer del scanner. Una línea de evento normal
// queda muy por debajo; esto solo evita que un log basura reviente memoria.
const maxLogLine = 1 << 20

// appendWorkerEvent serializa el append al log del worker: una línea
// JSON por evento, un solo write con O_APPEND para no interlinear.
func (v *Vault) appendWorkerEvent(workerID string, event VaultEvent) error {
	mu := v.lockForWorker(workerID)
	mu.Lock()
	defer mu.Unlock()

	return appendJSONLine(v.workerLogPath(workerID), event)
}

func appendJSONLine(path string, record any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return storageErr("marshal log record", err)
	}
	b = append(b, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return storageErr("open log "+path, err)
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return storageErr("append to "+path, err)
	}
	return nil
}

// scanWorkerLogs recorre todos los logs de workers buscando eventos del
// serial. Scan lineal: aceptable para la escala de auditoría (el índice
// por serial vive en internal/archive para quien necesite lookup rápido).
// Una línea corrupta se saltea y se cuenta; nunca aborta el scan.
func (v *Vault) scanWorkerLogs(serial string) ([]VaultEvent, int, error) {
	paths, err := filepath.Glob(filepath.Join(v.eventsDir(), "*_events.jsonl"))
	if err != nil {
		return nil, 0, storageErr("glob event logs", err)
	}

	var events []VaultEvent
	corrupt := 0

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, corrupt, storageErr("open log "+path, err)
		}

		name := filepath.Base(path)
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), maxLogLine)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var ev VaultEvent
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				corrupt++
				metrics.IncCorruptLine(name)
				v.log.Debug("skipping corrupt log line", logger.String("log", name), logger.Err(err))
				continue
			}
			if ev.Serial == serial {
				events = append(events, ev)
			}
		}
		scanErr := sc.Err()
		_ = f.Close()
		if scanErr != nil {
			return nil, corrupt, storageErr("scan log "+path, scanErr)
		}
	}

	sortEventsByTime(events)
	return events, corrupt, nil
}

// sortEventsByTime ordena ascendente por timestamp. RFC3339Nano recorta
// ceros finales, así que comparar strings no alcanza: parseamos.
func sortEventsByTime(events []VaultEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, erri := time.Parse(time.RFC3339Nano, events[i].Timestamp)
		tj, errj := time.Parse(time.RFC3339Nano, events[j].Timestamp)
		if erri != nil || errj != nil {
			return events[i].Timestamp < events[j].Timestamp
		}
		return ti.Before(tj)
	})
}

// countLines cuenta líneas no vacías de un archivo; 0 si no existe.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, storageErr("open "+path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLogLine)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, storageErr("scan "+path, err)
	}
	return n, nil
}
