package http

// messages holds the user-facing texts shown by the exercise endpoints.
type messages struct {
	AlreadyCompleted string
	NoChallenge      string
	NoExercise       string
	InvalidCode      string
	InvalidResponse  string
	ServerError      string
	DailyError       string
	ChallengeError   string
	CooldownWait     string
	LimitReached     string // format: daily limit
}

var localized = map[string]messages{
	"en": {
		AlreadyCompleted: "You have already completed today's exercise.",
		NoChallenge:      "No daily challenge found for today.",
		NoExercise:       "No exercise found for the selected difficulty.",
		InvalidCode:      "Invalid code. No points awarded.",
		InvalidResponse:  "Invalid response from the reviewer.",
		ServerError:      "Error checking the code",
		DailyError:       "Error getting or generating daily challenge",
		ChallengeError:   "Error generating challenge",
		CooldownWait:     "Please wait a minute before making another request",
		LimitReached:     "You have reached the daily limit of %d challenges",
	},
	"es": {
		AlreadyCompleted: "Ya has completado el ejercicio de hoy.",
		NoChallenge:      "No se encontró un desafío diario para hoy.",
		NoExercise:       "No se encontró un ejercicio para la dificultad seleccionada.",
		InvalidCode:      "Código inválido. No se otorgan puntos.",
		InvalidResponse:  "Respuesta inválida del revisor.",
		ServerError:      "Error al checar el código",
		DailyError:       "Error al obtener o generar el desafío diario",
		ChallengeError:   "Error al generar el desafío",
		CooldownWait:     "Por favor espera un minuto antes de hacer otra solicitud",
		LimitReached:     "Has alcanzado el límite diario de %d desafíos",
	},
}

// messagesFor returns the texts for a language code, English by default.
func messagesFor(lang string) messages {
	if m, ok := localized[lang]; ok {
		return m
	}
	return localized["en"]
}
