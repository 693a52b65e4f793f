package discover

import (
	"fmt"
	"regexp"
	"strings"
)

// EpisodeGroup buckets an episode number logarithmically: 0-9, 10-99,
// 100-999, and so on. Routing on the group instead of the raw number keeps
// directory fan-out bounded as corpora grow.
func EpisodeGroup(episode, groupSize int) string {
	if groupSize <= 0 {
		groupSize = 10
	}
	if episode < 0 {
		episode = 0
	}
	if episode < groupSize {
		return fmt.Sprintf("0-%d", groupSize-1)
	}
	magnitude := len(fmt.Sprint(episode)) - 1
	lower := pow10(magnitude)
	return fmt.Sprintf("%d-%d", lower, lower*10-1)
}

func pow10(n int) int {
	out := 1
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}

var toolFamilies = []struct {
	family  string
	pattern *regexp.Regexp
}{
	{"search", regexp.MustCompile(`search|web_search|info_gather|query`)},
	{"compute", regexp.MustCompile(`python|code|math|calculate|interpreter`)},
	{"memory", regexp.MustCompile(`memory|recall|remember|store`)},
	{"translate", regexp.MustCompile(`translate|trans_`)},
	{"sentiment", regexp.MustCompile(`sentiment|emotion|analyze_tone`)},
	{"planning", regexp.MustCompile(`plan|schedule|organize|strategy`)},
}

// ToolFamily maps a tool or action string to a broad category, so routing
// dimensions stay coarse: "web_search_v2" and "info_gather" both land under
// "search". Unrecognized tools map to "general".
func ToolFamily(toolOrAction string) string {
	lower := strings.ToLower(toolOrAction)
	for _, tf := range toolFamilies {
		if tf.pattern.MatchString(lower) {
			return tf.family
		}
	}
	return "general"
}
