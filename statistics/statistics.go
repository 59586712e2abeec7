package statistics

import (
	"sync"
)

// Run counters shared by the executor workers. Keys in use:
// "migrations_dispatched", "migrations_accepted", "migrations_rejected".
type statisticsData struct {
	dataMap map[string]int

	mutex sync.Mutex
}

var stats *statisticsData

func Init() {
	stats = &statisticsData{
		dataMap: make(map[string]int),
	}
}

func Change(key string, value int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap[key] += value
}

func Get(key string) int {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	return stats.dataMap[key]
}

func Snapshot() map[string]int {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	ret := make(map[string]int, len(stats.dataMap))
	for key, value := range stats.dataMap {
		ret[key] = value
	}

	return ret
}
