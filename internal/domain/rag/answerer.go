package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

const (
	searchTopK      = 30
	adjacentRange   = 2
	rerankTopK      = 15
	defaultMaxTokens = 4096
	retryMaxTokens   = 8192
	defaultSessionTitle = "Đoạn chat mới"
)

var incompleteSuffixes = []string{
	"như sau:", "như sau",
	"bao gồm:", "bao gồm",
	"cụ thể:", "cụ thể",
	"gồm:",
}

// ModelPolicy configures which models Answerer calls and in what order.
type ModelPolicy struct {
	Primary  string
	Fallback []string
}

// Answerer implements the end-to-end query pipeline: short-circuit on
// greetings/meaningless input, dense search, adjacent expansion, rerank,
// grounded prompt assembly, and LLM completion with completeness-retry
// and model fallback.
type Answerer struct {
	vectorStore VectorStore
	reranker    Reranker
	filter      NaturalLanguageFilter
	llm         LLM
	chatStore   ChatStore
	models      ModelPolicy
	logger      *slog.Logger
}

// NewAnswerer wires the services the query pipeline depends on.
func NewAnswerer(vectorStore VectorStore, reranker Reranker, filter NaturalLanguageFilter, llm LLM, chatStore ChatStore, models ModelPolicy, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		vectorStore: vectorStore,
		reranker:    reranker,
		filter:      filter,
		llm:         llm,
		chatStore:   chatStore,
		models:      models,
		logger:      logger.With("component", "rag.answerer"),
	}
}

// Answer runs the full pipeline and returns the reply text plus the chat
// session it was recorded under.
func (a *Answerer) Answer(ctx context.Context, userID, sessionID, question, selectedFile string) (string, string, error) {
	if reply, matched := a.filter.Classify(question); matched {
		sessionID = a.ensureSession(ctx, userID, sessionID)
		a.persistTurn(ctx, userID, sessionID, question, reply, selectedFile)
		return reply, sessionID, nil
	}

	sessionID = a.ensureSession(ctx, userID, sessionID)

	seeds, err := a.vectorStore.Search(ctx, question, searchTopK, selectedFile, userID)
	if err != nil {
		return "", sessionID, fmt.Errorf("search: %w", err)
	}
	if len(seeds) == 0 {
		reply := "Không tìm thấy thông tin liên quan trong các tài liệu đã tải lên."
		if selectedFile != "" {
			reply += fmt.Sprintf(" (đã tìm trong file: %s)", selectedFile)
		}
		a.persistTurn(ctx, userID, sessionID, question, reply, selectedFile)
		return reply, sessionID, nil
	}

	expanded, err := a.vectorStore.GetAdjacent(ctx, seeds, adjacentRange)
	if err != nil {
		return "", sessionID, fmt.Errorf("expand adjacent chunks: %w", err)
	}

	reranked, err := a.reranker.Rerank(ctx, question, expanded, rerankTopK)
	if err != nil {
		return "", sessionID, fmt.Errorf("rerank: %w", err)
	}

	contextText := buildContext(reranked)
	answer := a.generateAnswer(ctx, question, contextText, selectedFile)

	a.persistTurn(ctx, userID, sessionID, question, answer, selectedFile)
	return answer, sessionID, nil
}

func (a *Answerer) ensureSession(ctx context.Context, userID, sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	session, err := a.chatStore.CreateChatSession(ctx, userID, defaultSessionTitle)
	if err != nil {
		a.logger.Error("create chat session failed", "error", err)
		return ""
	}
	return session.ID
}

func (a *Answerer) persistTurn(ctx context.Context, userID, sessionID, question, response, selectedFile string) {
	if sessionID == "" {
		return
	}
	turn := ChatTurn{UserID: userID, SessionID: sessionID, Message: question, Response: response, SelectedFile: selectedFile}
	if err := a.chatStore.SaveChatTurn(ctx, turn); err != nil {
		a.logger.Error("save chat turn failed", "error", err, "session_id", sessionID)
	}
	if err := a.chatStore.UpdateChatSessionTitle(ctx, sessionID, question); err != nil {
		a.logger.Error("update chat session title failed", "error", err, "session_id", sessionID)
	}
}

// buildContext groups reranked chunks by (filename, page), sorts groups
// ascending, collapses whitespace within a group, and joins groups with
// a visible separator.
func buildContext(chunks []RerankedResult) string {
	type group struct {
		filename string
		page     int
		texts    []string
	}
	groups := make(map[string]*group)
	var order []string
	for _, c := range chunks {
		key := fmt.Sprintf("%s_page_%d", c.Filename, c.PageNumber)
		g, ok := groups[key]
		if !ok {
			g = &group{filename: c.Filename, page: c.PageNumber}
			groups[key] = g
			order = append(order, key)
		}
		g.texts = append(g.texts, c.Text)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if a.filename != b.filename {
			return a.filename < b.filename
		}
		return a.page < b.page
	})

	parts := make([]string, 0, len(order))
	for _, key := range order {
		combined := strings.Join(groups[key].texts, " ")
		parts = append(parts, strings.Join(strings.Fields(combined), " "))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func buildPrompt(question, contextText, selectedFile string) string {
	fileHint := ""
	if selectedFile != "" {
		fileHint = fmt.Sprintf(" (trong file: %s)", selectedFile)
	}
	return fmt.Sprintf(`Bạn là trợ lý hành chính Việt Nam cực kỳ chính xác và chuyên nghiệp.
Nhiệm vụ của bạn là trả lời câu hỏi dựa HOÀN TOÀN vào các tài liệu tham khảo được cung cấp bên dưới.

TÀI LIỆU THAM KHẢO%s:
%s

CÂU HỎI: %s

YÊU CẦU TRẢ LỜI:
1. Chỉ trả lời dựa trên tài liệu tham khảo ở trên, không được tự bịa thêm thông tin.
2. Nếu tài liệu có câu dẫn như "như sau:", "bao gồm:", "cụ thể:", "gồm:" thì PHẢI liệt kê đầy đủ toàn bộ nội dung tiếp theo, không được dừng lại giữa chừng.
3. Giữ nguyên định dạng markdown (danh sách, bảng, in đậm) khi trích dẫn.
4. Nếu tài liệu tham khảo không chứa thông tin để trả lời câu hỏi, hãy trả lời đúng câu: "Trong các tài liệu đã upload chưa có thông tin về nội dung này."

Hãy trả lời một cách chi tiết, đầy đủ và có định dạng đẹp:`, fileHint, contextText, question)
}

func (a *Answerer) generateAnswer(ctx context.Context, question, contextText, selectedFile string) string {
	prompt := buildPrompt(question, contextText, selectedFile)

	answer, err := a.llm.Complete(ctx, prompt, a.models.Primary, defaultMaxTokens)
	if err == nil {
		if looksIncomplete(answer) {
			a.logger.Warn("answer looks truncated, retrying with higher max_tokens")
			if retried, retryErr := a.llm.Complete(ctx, prompt, a.models.Primary, retryMaxTokens); retryErr == nil && len(retried) > len(answer) {
				answer = retried
			} else if retryErr != nil {
				a.logger.Warn("completeness retry failed", "error", retryErr)
			}
		}
		return answer
	}

	a.logger.Warn("primary model failed, trying fallback models", "model", a.models.Primary, "error", err)
	for _, model := range a.models.Fallback {
		a.logger.Info("trying fallback model", "model", model)
		if reply, fbErr := a.llm.Complete(ctx, prompt, model, defaultMaxTokens); fbErr == nil {
			a.logger.Info("fallback model succeeded", "model", model)
			return reply
		} else {
			a.logger.Warn("fallback model failed", "model", model, "error", fbErr)
		}
	}

	a.logger.Error("all models failed, returning raw context", "primary", a.models.Primary)
	return fmt.Sprintf("⚠️ Không thể tạo câu trả lời tự động lúc này. Dưới đây là thông tin tìm được từ tài liệu:\n\n%s", contextText)
}

func looksIncomplete(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return false
	}
	for _, suffix := range incompleteSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	if strings.HasSuffix(trimmed, ":") && len(strings.Split(trimmed, "\n")) < 3 {
		return true
	}
	return false
}
