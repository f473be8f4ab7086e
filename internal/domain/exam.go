package domain

// examSubjects maps each supported exam to the subjects a generated
// question set covers. The key set doubles as the submission allow-list.
var examSubjects = map[string][]string{
	"JEE":  {"Physics", "Chemistry", "Mathematics"},
	"NEET": {"Physics", "Chemistry", "Biology"},
	"GATE": {"Engineering Mathematics", "General Aptitude", "Core Subject"},
	"UPSC": {"Polity", "History", "Geography", "Economy"},
	"NMMS": {"Mental Ability", "Scholastic Aptitude"},
}

// Bounds on questions_per_subject for exam generation requests.
const (
	MinQuestionsPerSubject = 10
	MaxQuestionsPerSubject = 100
)

// SupportedExam reports whether name is on the exam allow-list.
func SupportedExam(name string) bool {
	_, ok := examSubjects[name]
	return ok
}

// SubjectsFor returns the subject list for the given exam, or false if
// the exam is not supported. Callers must not mutate the returned slice.
func SubjectsFor(name string) ([]string, bool) {
	subjects, ok := examSubjects[name]
	return subjects, ok
}
