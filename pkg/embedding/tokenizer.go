// Package embedding 将规范化查询文本变换为单位模长的句向量。
// 分词器与 ONNX 图必须来自同一次离线训练产物：两者任何一侧不匹配都会
// 产出“看起来合法但语义空间错位”的向量，这类错误无法靠类型检查发现，
// 只能靠 golden 向量回归测试兜底。
package embedding

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"cinematch-go/pkg/log"
)

// TokenBatch 是一条文本编码后的定长数值序列，batch 恒为 1。
// 序列只截断不回绕，与离线生成目录向量时的截断策略一致。
type TokenBatch struct {
	IDs           []int64
	AttentionMask []int64
}

// Tokenizer 包装 HuggingFace tokenizer.json 的加载与编码。
type Tokenizer struct {
	tk     *tokenizer.Tokenizer
	maxLen int
}

// NewTokenizer 从 tokenizer.json 加载分词器并设置截断策略。
// 加载失败属于启动致命错误（ErrModelLoad）。
func NewTokenizer(path string, maxLen int) (*Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 加载分词器 %s: %v", ErrModelLoad, path, err)
	}

	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxLen,
		Strategy:  tokenizer.LongestFirst,
	})

	log.Infof("[Tokenizer] 分词器加载成功, path: %s, max_seq_len: %d", path, maxLen)
	return &Tokenizer{tk: tk, maxLen: maxLen}, nil
}

// Tokenize 将文本编码为 TokenBatch，包含特殊 token，超长部分截断。
// 不做超出模型需要的 padding：batch 为 1，序列轴按实际长度传入推理图。
func (t *Tokenizer) Tokenize(text string) (*TokenBatch, error) {
	en, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenization, err)
	}
	if len(en.Ids) == 0 {
		return nil, fmt.Errorf("%w: 编码结果为空", ErrTokenization)
	}

	batch := &TokenBatch{
		IDs:           make([]int64, len(en.Ids)),
		AttentionMask: make([]int64, len(en.AttentionMask)),
	}
	for i, id := range en.Ids {
		batch.IDs[i] = int64(id)
	}
	for i, m := range en.AttentionMask {
		batch.AttentionMask[i] = int64(m)
	}
	return batch, nil
}
