package program

import (
	"fmt"

	"github.com/grad-hub/grad-record-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM CODE RESOLVER
// Чистая функция: (requirement year, школа, французский индикатор, выпустился?)
// → код программы либо ошибка разрешения. Две таблицы правил: для текущих
// (не выпустившихся) студентов и для уже выпустившихся, потому что критерии
// отличаются.
// ══════════════════════════════════════════════════════════════════════════════

// французские сертификаты, допускающие PF-вариант для выпускника.
const (
	certFrancophone     = "F"
	certProgrammeDouble = "S"
)

// ResolutionError - ошибка разрешения кода программы. Фиксируется по PEN
// в журнале ошибок конвертации и никогда не прерывает обработку события.
type ResolutionError struct {
	// RequirementYear - входной requirement year, который не удалось отобразить.
	RequirementYear string

	// Reason - человекочитаемая причина отказа.
	Reason string
}

// Error реализует интерфейс error.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("program resolution failed for requirement year %q: %s", e.RequirementYear, e.Reason)
}

// newResolutionError создаёт ошибку разрешения.
func newResolutionError(year, reason string) *ResolutionError {
	return &ResolutionError{RequirementYear: year, Reason: reason}
}

// ResolveInput - входные данные разрешения кода программы.
type ResolveInput struct {
	// RequirementYear - год требований к выпуску ("2018", "2004", "1996",
	// "1995", "1986", "1950", "SCCP").
	RequirementYear string

	// SchoolOfRecord - код школы; франкоязычные округа имеют префикс "093".
	SchoolOfRecord student.SchoolCode

	// FrenchIndicator - для не выпустившихся: флаг французского dogwood
	// ("Y"/"N"); для выпустившихся: код сертификата ("F", "S" и др.).
	FrenchIndicator string

	// StudentGrade - класс обучения; значим только для выпускников 1950.
	StudentGrade student.Grade

	// Graduated - выбирает таблицу правил.
	Graduated bool
}

// rule - одна строка таблицы разрешения: requirement year → функция выбора кода.
type rule func(in ResolveInput) (string, error)

// currentRules - таблица для не выпустившихся студентов.
var currentRules = map[string]rule{
	"2018": yearBySchoolPrefix("2018"),
	"2004": yearBySchoolPrefix("2004"),
	"1996": yearBySchoolPrefix("1996"),
	"1986": func(in ResolveInput) (string, error) {
		if in.FrenchIndicator == "Y" {
			return "1986" + SuffixProgrammeFrancophone, nil
		}
		return "1986" + SuffixEnglish, nil
	},
	"1950": constantCode(ProgramAdult1950),
	"SCCP": constantCode(ProgramSCCP),
}

// completedRules - таблица для уже выпустившихся студентов. FrenchIndicator
// здесь - код сертификата, а не флаг.
var completedRules = map[string]rule{
	"2018": yearBySchoolAndCert("2018"),
	"2004": yearBySchoolAndCert("2004"),
	// Оба старых года отображаются в программу 1996.
	"1996": yearBySchoolAndCert("1996"),
	"1995": yearBySchoolAndCert("1996"),
	// PF-варианта для выпускников 1986 не существует. Асимметрия с таблицей
	// не выпустившихся намеренная, унаследована от исходной системы.
	"1986": constantCode("1986" + SuffixEnglish),
	"1950": func(in ResolveInput) (string, error) {
		if in.StudentGrade.IsAdult() {
			return ProgramAdult1950, nil
		}
		return "", newResolutionError("1950", "graduated 1950 program requires adult grade AD")
	},
	"SCCP": constantCode(ProgramSCCP),
}

// yearBySchoolPrefix: франкоязычная школа → "<year>-PF", иначе "<year>-EN".
func yearBySchoolPrefix(year string) rule {
	return func(in ResolveInput) (string, error) {
		if in.SchoolOfRecord.IsFrancophone() {
			return year + SuffixProgrammeFrancophone, nil
		}
		return year + SuffixEnglish, nil
	}
}

// yearBySchoolAndCert: франкоязычная школа и сертификат F/S → "<year>-PF",
// иначе "<year>-EN".
func yearBySchoolAndCert(year string) rule {
	return func(in ResolveInput) (string, error) {
		if in.SchoolOfRecord.IsFrancophone() && isFrenchCertificate(in.FrenchIndicator) {
			return year + SuffixProgrammeFrancophone, nil
		}
		return year + SuffixEnglish, nil
	}
}

// constantCode: requirement year всегда отображается в один код.
func constantCode(code string) rule {
	return func(ResolveInput) (string, error) {
		return code, nil
	}
}

func isFrenchCertificate(cert string) bool {
	return cert == certFrancophone || cert == certProgrammeDouble
}

// Resolve разрешает код программы по входным данным. Чистая функция без
// побочных эффектов; при неизвестном requirement year возвращает
// *ResolutionError.
func Resolve(in ResolveInput) (string, error) {
	table := currentRules
	if in.Graduated {
		table = completedRules
	}

	r, ok := table[in.RequirementYear]
	if !ok {
		return "", newResolutionError(in.RequirementYear, "unmapped requirement year")
	}

	return r(in)
}
