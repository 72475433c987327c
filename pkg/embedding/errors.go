package embedding

import "errors"

// 错误分类与传播策略：
//   - ErrModelLoad 只会发生在启动阶段，命中后服务不得上报就绪；
//   - ErrTokenization 是单请求硬失败，不重试（同样的输入重试必然复现）；
//   - ErrInference 对于尺寸正确的 TokenBatch 不可达，触发即说明存在编码缺陷。
var (
	ErrModelLoad    = errors.New("模型产物加载失败")
	ErrTokenization = errors.New("文本无法被分词器编码")
	ErrInference    = errors.New("推理输入形状异常")
)
