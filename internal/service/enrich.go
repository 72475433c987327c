// Package service 提供推荐管线的业务逻辑。
package service

import (
	"strconv"
	"strings"

	"cinematch-go/internal/model"
)

// BuildQueryText 从请求构造送入分词器的规范化查询文本。
//
// 离线训练语料使用的格式是
// "Genre: {genre}. Year: {year}. Title: {title}. Overview: {synopsis}"，
// 字段顺序、标点与大小写都是冻结的契约：模型就是在这个格式上训练的，
// 任何偏差都会劣化检索质量。只拼接调用方实际提供的元数据字段，
// 一个都没有时直接返回原始梗概。
//
// 纯函数：相同输入字节级一致的输出，无 I/O，无本地化格式化。
func BuildQueryText(req model.RecommendRequest) string {
	if req.Genre == "" && req.Year == nil && req.Title == "" {
		return req.Synopsis
	}

	parts := make([]string, 0, 4)
	if req.Genre != "" {
		parts = append(parts, "Genre: "+req.Genre)
	}
	if req.Year != nil {
		parts = append(parts, "Year: "+strconv.Itoa(*req.Year))
	}
	if req.Title != "" {
		parts = append(parts, "Title: "+req.Title)
	}
	parts = append(parts, "Overview: "+req.Synopsis)

	return strings.Join(parts, ". ")
}
