package operations

import (
	"golang.org/x/text/language"

	"gateway/internal/domain"
)

type messageKey int

const (
	msgNotFoundYet messageKey = iota
	msgPending
	msgProcessing
	msgCompleted
	msgFailed
)

var supportedLocales = []language.Tag{language.English, language.Spanish}

var localeMatcher = language.NewMatcher(supportedLocales)

var catalog = map[language.Tag]map[messageKey]string{
	language.English: {
		msgNotFoundYet: "Video still processing or not found",
		msgPending:     "Video generation queued",
		msgProcessing:  "Video still processing",
		msgCompleted:   "Video generation completed successfully",
		msgFailed:      "Video generation failed",
	},
	language.Spanish: {
		msgNotFoundYet: "El video aún se está procesando o no existe",
		msgPending:     "Generación de video en cola",
		msgProcessing:  "El video aún se está procesando",
		msgCompleted:   "Video generado exitosamente",
		msgFailed:      "La generación del video falló",
	},
}

// message returns the phrase for key in the closest supported locale.
func message(locale string, key messageKey) string {
	tag := language.English
	if locale != "" {
		_, idx, conf := localeMatcher.Match(language.Make(locale))
		if conf != language.No {
			tag = supportedLocales[idx]
		}
	}
	return catalog[tag][key]
}

// StatusMessage is the default phrase for status in locale.
func StatusMessage(locale string, status domain.OperationStatus) string {
	switch status {
	case domain.StatusPending:
		return message(locale, msgPending)
	case domain.StatusCompleted:
		return message(locale, msgCompleted)
	case domain.StatusFailed:
		return message(locale, msgFailed)
	default:
		return message(locale, msgProcessing)
	}
}

// defaultFailureMessage is stored for failed operations reported without a reason.
var defaultFailureMessage = catalog[language.English][msgFailed]
