package agent

import "errors"

// errNoLLM indicates the LLM capability is not configured where required.
var errNoLLM = errors.New("LLM capability not configured")
