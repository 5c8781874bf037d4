package agent

import (
	"os"

	"github.com/AdamZagri/aibi-server/config"
	"github.com/AdamZagri/aibi-server/logger"
)

// Rules holds the domain instruction files injected into SQL-generation
// prompts. A missing file degrades to an empty section rather than
// failing startup.
type Rules struct {
	Important    string
	ImportantCTI string
	StarHint     string
}

// LoadRules reads the rule files named in the configuration.
func LoadRules(cfg config.Config, log *logger.Logger) Rules {
	return Rules{
		Important:    readRuleFile(cfg.ImportantPath, log),
		ImportantCTI: readRuleFile(cfg.ImportantCTIPath, log),
		StarHint:     readRuleFile(cfg.StarHintPath, log),
	}
}

func readRuleFile(path string, log *logger.Logger) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Warn("rule file not loaded", "path", path, "error", err)
		return ""
	}
	return string(b)
}
