// Package program содержит чистые правила разрешения кода программы и
// классификацию кодов дополнительных/карьерных программ.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package program

import "strings"

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM CODE SUFFIXES & CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// SuffixProgrammeFrancophone - суффикс франкоязычной программы ("2018-PF").
	SuffixProgrammeFrancophone = "-PF"

	// SuffixEnglish - суффикс англоязычной программы ("2018-EN").
	SuffixEnglish = "-EN"

	// ProgramAdult1950 - взрослая программа 1950 года (без суффикса).
	ProgramAdult1950 = "1950"

	// ProgramSCCP - School Completion Certificate Program, неформальный путь
	// завершения школы; рассматривается как отдельный requirement year.
	ProgramSCCP = "SCCP"
)

// IsProgrammeFrancophone возвращает true для кода с суффиксом "-PF".
func IsProgrammeFrancophone(code string) bool {
	return strings.HasSuffix(code, SuffixProgrammeFrancophone)
}

// IsEnglishProgram возвращает true для кода с суффиксом "-EN".
func IsEnglishProgram(code string) bool {
	return strings.HasSuffix(code, SuffixEnglish)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROTECTED OPTIONAL PROGRAM CODES
// ══════════════════════════════════════════════════════════════════════════════

// ProtectedCode - закрытое перечисление кодов дополнительных программ,
// которые никогда не удаляются через явный дифф XPROGRAM: ими управляют
// выделенные правила.
type ProtectedCode string

const (
	// CodeDualDogwood - двойной диплом (EN + Programme Francophone).
	// Управляется исключительно переходом суффикса кода программы.
	CodeDualDogwood ProtectedCode = "DD"

	// CodeFrenchImmersion - французское погружение. Управляется предикатом
	// наличия французских курсов, а не списками кодов.
	CodeFrenchImmersion ProtectedCode = "FI"

	// CodeCareerPrep - производный агрегат "есть хотя бы одна карьерная
	// программа".
	CodeCareerPrep ProtectedCode = "CP"
)

// ProtectedCodes возвращает полный набор защищённых кодов.
func ProtectedCodes() []ProtectedCode {
	return []ProtectedCode{CodeDualDogwood, CodeFrenchImmersion, CodeCareerPrep}
}

// IsProtected проверяет, входит ли код в защищённый набор.
func IsProtected(code string) bool {
	switch ProtectedCode(code) {
	case CodeDualDogwood, CodeFrenchImmersion, CodeCareerPrep:
		return true
	default:
		return false
	}
}
