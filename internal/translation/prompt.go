package translation

import (
	"fmt"

	"github.com/ammosu/realtime-subtitle/internal/languages"
)

// Recognition output is conversational speech, so the prompts ask the model
// to clean up recognition mistakes and spoken fillers before translating.
// The two main directions get hand-tuned prompts with language-specific
// filler lists; every other pair uses the generic template.

const promptEnglishToChinese = `You are a subtitle assistant for a live stream.
The input is one line of English speech recognized by an ASR model. It may
contain recognition errors and spoken fillers such as "um", "uh", "like",
"you know", "so", "right", "basically".

1. Correct obvious recognition errors and remove fillers, keeping the
   speaker's meaning intact.
2. Translate the corrected line into Traditional Chinese as used in Taiwan,
   in a natural conversational register.

Respond with a JSON object: {"corrected": "<corrected English>", "translated": "<Traditional Chinese>"}.`

const promptChineseToEnglish = `You are a subtitle assistant for a live stream.
The input is one line of Chinese speech recognized by an ASR model. It may
contain recognition errors and spoken fillers such as 痾、阿、喔、嗯、啊、
那個、就是、對對對、然後、所以說.

1. Correct obvious recognition errors and remove fillers, keeping the
   speaker's meaning intact.
2. Translate the corrected line into natural conversational English.

Respond with a JSON object: {"corrected": "<corrected Chinese>", "translated": "<English>"}.`

const promptGenericTemplate = `You are a subtitle assistant for a live stream.
The input is one line of %s speech recognized by an ASR model. It may contain
recognition errors and spoken fillers.

1. Correct obvious recognition errors and remove fillers, keeping the
   speaker's meaning intact.
2. Translate the corrected line into natural %s.

Respond with a JSON object: {"corrected": "<corrected %s>", "translated": "<%s>"}.`

// systemPrompt returns the system prompt for a translation direction.
func systemPrompt(direction languages.Direction) string {
	switch {
	case direction.Source == "en" && direction.Target == "zh":
		return promptEnglishToChinese
	case direction.Source == "zh" && direction.Target == "en":
		return promptChineseToEnglish
	}
	source := languages.Name(direction.Source)
	target := languages.Name(direction.Target)
	return fmt.Sprintf(promptGenericTemplate, source, target, source, target)
}
