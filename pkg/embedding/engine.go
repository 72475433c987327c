package embedding

import (
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"cinematch-go/internal/config"
	"cinematch-go/pkg/log"
)

// Engine 持有量化 ONNX 推理图的会话。会话在启动阶段创建一次，
// 之后只读，onnxruntime 的 Run 支持任意数量的并发调用。
type Engine struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	dim        int
}

// NewEngine 加载量化推理图并按名称探测模型的输入张量。
// 输入名的匹配规则与离线管线一致：input_ids / attention|mask /
// token_type|segment 三类，未知输入名视为产物损坏。
func NewEngine(cfg config.ModelConfig) (*Engine, error) {
	if cfg.ORTLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.ORTLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: 初始化 onnxruntime 环境: %v", ErrModelLoad, err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ONNXPath)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取模型 %s 的输入输出信息: %v", ErrModelLoad, cfg.ONNXPath, err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: 模型没有输出张量", ErrModelLoad)
	}

	inputNames := make([]string, 0, len(inputs))
	for _, in := range inputs {
		lower := strings.ToLower(in.Name)
		switch {
		case strings.Contains(lower, "input_ids"),
			strings.Contains(lower, "attention"), strings.Contains(lower, "mask"),
			strings.Contains(lower, "token_type"), strings.Contains(lower, "segment"):
			inputNames = append(inputNames, in.Name)
		default:
			return nil, fmt.Errorf("%w: 无法识别的模型输入 '%s'", ErrModelLoad, in.Name)
		}
	}
	if len(inputNames) == 0 {
		return nil, fmt.Errorf("%w: 模型没有可识别的输入张量", ErrModelLoad)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: 创建会话选项: %v", ErrModelLoad, err)
	}
	defer opts.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("%w: 设置推理线程数: %v", ErrModelLoad, err)
		}
	}

	// 序列轴长度逐请求变化，使用动态会话而不是固定形状绑定。
	session, err := ort.NewDynamicAdvancedSession(cfg.ONNXPath, inputNames, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建推理会话 %s: %v", ErrModelLoad, cfg.ONNXPath, err)
	}

	log.Infof("[EmbeddingEngine] 模型加载成功, path: %s, inputs: %v, output: %s, 维度: %d",
		cfg.ONNXPath, inputNames, outputs[0].Name, cfg.Dimensions)
	return &Engine{
		session:    session,
		inputNames: inputNames,
		outputName: outputs[0].Name,
		dim:        cfg.Dimensions,
	}, nil
}

// Dimension 返回句向量的固定维度。
func (e *Engine) Dimension() int { return e.dim }

// Embed 对一条 TokenBatch 执行前向推理，对最后隐层按注意力掩码做
// 加权平均池化，再做 L2 归一化，返回单位模长的句向量。
// 相同输入在重复调用与进程重启之间的输出差异不超过浮点容差。
func (e *Engine) Embed(batch *TokenBatch) ([]float32, error) {
	if batch == nil || len(batch.IDs) == 0 {
		return nil, fmt.Errorf("%w: TokenBatch 为空", ErrInference)
	}
	seqLen := len(batch.IDs)
	if len(batch.AttentionMask) != seqLen {
		return nil, fmt.Errorf("%w: attention_mask 长度 %d 与 input_ids 长度 %d 不一致",
			ErrInference, len(batch.AttentionMask), seqLen)
	}

	shape := ort.NewShape(1, int64(seqLen))
	values := make([]ort.Value, 0, len(e.inputNames))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()

	for _, name := range e.inputNames {
		lower := strings.ToLower(name)
		var data []int64
		switch {
		case strings.Contains(lower, "input_ids"):
			data = batch.IDs
		case strings.Contains(lower, "attention"), strings.Contains(lower, "mask"):
			data = batch.AttentionMask
		default:
			// token_type_ids / segment：单句任务全零。
			data = make([]int64, seqLen)
		}
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("%w: 构造输入张量 '%s': %v", ErrInference, name, err)
		}
		values = append(values, tensor)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("%w: 前向推理失败: %v", ErrInference, err)
	}
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: 输出张量类型不是 float32", ErrInference)
	}
	defer out.Destroy()

	// 期望输出形状 [1, seq_len, hidden]。
	outShape := out.GetShape()
	if len(outShape) != 3 || int(outShape[2]) != e.dim {
		return nil, fmt.Errorf("%w: 输出形状 %v 与期望的 [1, L, %d] 不符", ErrInference, outShape, e.dim)
	}

	vec := meanPool(out.GetData(), batch.AttentionMask, int(outShape[1]), e.dim)
	l2Normalize(vec)
	return vec, nil
}

// Close 释放推理会话。仅在进程退出时调用。
func (e *Engine) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
}
