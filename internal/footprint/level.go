package footprint

const LogsPerLevel = 5

// LevelFor returns the level reached after totalLogs logs and the percentage
// of the way to the next one.
func LevelFor(totalLogs int) (level int, progress float64) {
	if totalLogs < 0 {
		totalLogs = 0
	}
	level = totalLogs/LogsPerLevel + 1
	progress = float64(totalLogs%LogsPerLevel) / LogsPerLevel * 100
	return level, progress
}
