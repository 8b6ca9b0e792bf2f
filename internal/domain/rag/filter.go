package rag

import (
	"regexp"
	"strings"
)

// greetingReply is indexed by canonical bucket name, mirroring the
// canned-response table of the source chatbot.
var greetingReply = map[string]string{
	"chao":      "Xin chào! Tôi là chatbot trợ lý hành chính Việt Nam. Tôi có thể giúp bạn tìm hiểu thông tin từ các tài liệu hành chính. Bạn cần hỗ trợ gì?",
	"ban_la_ai": "Tôi là chatbot trợ lý hành chính Việt Nam, được xây dựng bằng công nghệ RAG (Retrieval-Augmented Generation). Tôi có thể giúp bạn tìm kiếm và trả lời các câu hỏi về nội dung trong các tài liệu hành chính mà bạn đã upload. Bạn muốn hỏi gì về tài liệu?",
	"suc_khoe":  "Cảm ơn bạn đã hỏi! Tôi là một chatbot nên không có cảm xúc, nhưng tôi luôn sẵn sàng giúp bạn. Bạn có câu hỏi gì về tài liệu hành chính không?",
	"cam_on":    "Không có gì! Rất vui được giúp bạn. Nếu bạn có thêm câu hỏi nào khác về tài liệu, đừng ngần ngại hỏi nhé!",
	"tam_biet":  "Tạm biệt! Chúc bạn một ngày tốt lành. Nếu có câu hỏi gì, hãy quay lại nhé!",
}

const meaninglessReply = "Xin lỗi, tôi không hiểu câu hỏi của bạn. Vui lòng đặt câu hỏi rõ ràng và có ý nghĩa về nội dung trong các tài liệu đã upload. Ví dụ: 'Quy định về thủ tục hành chính là gì?' hoặc 'Tài liệu này nói về điều gì?'"

var (
	rePunct      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	reGreetHi    = regexp.MustCompile(`^(chao|hello|hi)(\s|$)`)
	reGreetWho   = regexp.MustCompile(`^ban\s+(la|khoe|the nao|co khoe)`)
	reGreetIntro = regexp.MustCompile(`^(gioi\s+thieu|ban\s+lam\s+gi|hom\s+nay\s+ban)`)
	reGreetThank = regexp.MustCompile(`^(cam\s+on|thanks|thank\s+you)(\s|$)`)
	reGreetBye   = regexp.MustCompile(`^(tam\s+biet|bye|goodbye)(\s|$)`)

	reAllDigitsPunct = regexp.MustCompile(`^[\d\s\p{P}\p{S}]+$`)
	reAllDigits      = regexp.MustCompile(`^\d+$`)
)

// keyboardPatterns are QWERTY row walks plus alphabet and digit runs; a
// query whose letters contain any of these substrings isn't a real
// question.
var keyboardPatterns = []string{
	"qwerty", "asdfgh", "zxcvbn", "qazwsx", "abcdef", "ghijkl", "mnopqr",
	"stuvwx", "yz", "123456", "abcdefgh", "qwertyuiop", "asdfghjkl", "zxcvbnm",
}

// vietnameseFilter implements NaturalLanguageFilter with the greeting and
// meaningless-input heuristics of the source chatbot, applied after
// lowercasing, accent-folding and punctuation stripping.
type vietnameseFilter struct{}

// NewVietnameseFilter constructs the short-circuit filter used ahead of
// retrieval.
func NewVietnameseFilter() NaturalLanguageFilter {
	return vietnameseFilter{}
}

func (vietnameseFilter) Classify(query string) (string, bool) {
	normalized := normalizeForMatch(query)
	if normalized == "" {
		return "", false
	}

	switch {
	case reGreetHi.MatchString(normalized):
		return greetingReply["chao"], true
	case reGreetWho.MatchString(normalized):
		return greetingReply["ban_la_ai"], true
	case reGreetIntro.MatchString(normalized):
		return greetingReply["ban_la_ai"], true
	case reGreetThank.MatchString(normalized):
		return greetingReply["cam_on"], true
	case reGreetBye.MatchString(normalized):
		return greetingReply["tam_biet"], true
	}
	if reply, ok := greetingReply[normalized]; ok {
		return reply, true
	}

	if isMeaningless(query) {
		return meaninglessReply, true
	}
	return "", false
}

// normalizeForMatch lowercases, strips punctuation and folds Vietnamese
// diacritics to plain ASCII so the greeting regexes stay simple.
func normalizeForMatch(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = rePunct.ReplaceAllString(lower, "")
	lower = strings.Join(strings.Fields(lower), " ")
	return foldDiacritics(lower)
}

func isMeaningless(query string) bool {
	text := strings.TrimSpace(query)
	if text == "" {
		return false
	}
	if len([]rune(text)) < 3 {
		return false
	}
	if reAllDigitsPunct.MatchString(text) || reAllDigits.MatchString(text) {
		return true
	}

	clean := cleanLetters(text)
	if len([]rune(clean)) < 3 {
		return true
	}

	for _, pattern := range keyboardPatterns {
		if strings.Contains(clean, pattern) {
			return true
		}
	}

	runes := []rune(clean)

	maxConsecutive, current := 1, 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			current++
			if current > maxConsecutive {
				maxConsecutive = current
			}
		} else {
			current = 1
		}
	}
	if maxConsecutive >= 3 {
		return true
	}

	counts := map[rune]int{}
	for _, r := range runes {
		counts[r]++
	}
	mostCommon := 0
	for _, c := range counts {
		if c > mostCommon {
			mostCommon = c
		}
	}
	repetitionRatio := float64(mostCommon) / float64(len(runes))
	if repetitionRatio >= 0.5 && len(runes) >= 4 {
		return true
	}
	if repetitionRatio > 0.4 && len(runes) >= 6 {
		return true
	}

	uniqueChars := len(counts)
	words := wordTokens(text)
	meaningfulWords := meaningfulTokens(words)
	if len(meaningfulWords) == 0 && len(runes) >= 4 {
		uniqueRatio := float64(uniqueChars) / float64(len(runes))
		if uniqueRatio < 0.3 {
			return true
		}
		if uniqueChars <= 2 {
			return true
		}
		if uniqueChars == 3 && len(runes) >= 8 {
			return true
		}
		if len(runes) >= 10 && uniqueChars <= 4 {
			return true
		}
	}

	if isShortPeriodRepeat(runes) {
		return true
	}

	if len(words) >= 3 {
		wc := map[string]int{}
		for _, w := range words {
			wc[w]++
		}
		mostCommonWord := 0
		for _, c := range wc {
			if c > mostCommonWord {
				mostCommonWord = c
			}
		}
		if mostCommonWord >= 3 && len(words) < 10 {
			return true
		}
		if float64(mostCommonWord)/float64(len(words)) >= 0.5 && len(words) >= 4 {
			return true
		}
	}

	return false
}

// isShortPeriodRepeat detects strings made entirely of a repeated 2-4
// character pattern, e.g. "ababab" or "xyzxyzxyz". Strings shorter than
// 6 runes are never flagged.
func isShortPeriodRepeat(runes []rune) bool {
	n := len(runes)
	if n < 6 {
		return false
	}
	maxLen := n/2 + 1
	if maxLen > 5 {
		maxLen = 5
	}
	for patternLen := 2; patternLen < maxLen; patternLen++ {
		if n%patternLen != 0 {
			continue
		}
		pattern := string(runes[:patternLen])
		repeated := strings.Repeat(pattern, n/patternLen)
		if string(runes) == repeated {
			return true
		}
	}
	return false
}

var wordRe = regexp.MustCompile(`[a-zà-ỹđ]+`)

func wordTokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

var commonWords = map[string]bool{
	"cua": true, "va": true, "la": true, "co": true, "duoc": true, "trong": true,
	"voi": true, "cho": true, "tu": true, "ve": true, "nay": true, "do": true,
	"nao": true, "ban": true, "toi": true, "chung": true, "ho": true, "minh": true,
	"the": true, "is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "have": true, "has": true, "had": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "this": true, "that": true, "what": true,
	"when": true, "where": true, "why": true, "how": true, "who": true, "which": true,
}

func meaningfulTokens(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		runeLen := len([]rune(w))
		if runeLen < 2 {
			continue
		}
		ascii := foldDiacritics(w)
		if commonWords[ascii] || runeLen >= 4 {
			out = append(out, w)
		}
	}
	return out
}

func cleanLetters(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || isVietnameseLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isVietnameseLetter(r rune) bool {
	return strings.ContainsRune("àáảãạăắằẳẵặâấầẩẫậèéẻẽẹêếềểễệìíỉĩịòóỏõọôốồổỗộơớờởỡợùúủũụưứừửữựỳýỷỹỵđ", r)
}

var diacriticFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'ả': 'a', 'ã': 'a', 'ạ': 'a',
	'ă': 'a', 'ắ': 'a', 'ằ': 'a', 'ẳ': 'a', 'ẵ': 'a', 'ặ': 'a',
	'â': 'a', 'ấ': 'a', 'ầ': 'a', 'ẩ': 'a', 'ẫ': 'a', 'ậ': 'a',
	'è': 'e', 'é': 'e', 'ẻ': 'e', 'ẽ': 'e', 'ẹ': 'e',
	'ê': 'e', 'ế': 'e', 'ề': 'e', 'ể': 'e', 'ễ': 'e', 'ệ': 'e',
	'ì': 'i', 'í': 'i', 'ỉ': 'i', 'ĩ': 'i', 'ị': 'i',
	'ò': 'o', 'ó': 'o', 'ỏ': 'o', 'õ': 'o', 'ọ': 'o',
	'ô': 'o', 'ố': 'o', 'ồ': 'o', 'ổ': 'o', 'ỗ': 'o', 'ộ': 'o',
	'ơ': 'o', 'ớ': 'o', 'ờ': 'o', 'ở': 'o', 'ỡ': 'o', 'ợ': 'o',
	'ù': 'u', 'ú': 'u', 'ủ': 'u', 'ũ': 'u', 'ụ': 'u',
	'ư': 'u', 'ứ': 'u', 'ừ': 'u', 'ử': 'u', 'ữ': 'u', 'ự': 'u',
	'ỳ': 'y', 'ý': 'y', 'ỷ': 'y', 'ỹ': 'y', 'ỵ': 'y',
	'đ': 'd',
}

func foldDiacritics(text string) string {
	var b strings.Builder
	for _, r := range text {
		if folded, ok := diacriticFold[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
