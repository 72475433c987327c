// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
// 对象存储只参与启动阶段的产物获取，请求路径上不会被触碰。
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cinematch-go/internal/config"
	"cinematch-go/pkg/log"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确认产物存储桶存在。
// 存储桶由离线构建管线创建并写入，这里缺桶说明产物从未发布，直接失败。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	exists, err := MinioClient.BucketExists(context.Background(), cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}
	if !exists {
		log.Fatalf("产物存储桶 '%s' 不存在, 请先运行离线构建管线发布产物", cfg.BucketName)
	}

	log.Infof("MinIO 客户端初始化成功, bucket: %s", cfg.BucketName)
}

// EnsureArtifact 确保本地产物文件存在：已存在则原样使用（产物不可变，
// 无需比对版本），缺失时从存储桶按文件名下载。
func EnsureArtifact(ctx context.Context, cfg config.MinIOConfig, localPath string) error {
	if _, err := os.Stat(localPath); err == nil {
		log.Infof("[Storage] 产物已存在, 跳过下载: %s", localPath)
		return nil
	}

	objectName := filepath.Base(localPath)
	log.Infof("[Storage] 本地缺失产物 %s, 从存储桶 '%s' 下载对象 '%s'", localPath, cfg.BucketName, objectName)

	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return err
	}
	if err := MinioClient.FGetObject(ctx, cfg.BucketName, objectName, localPath, minio.GetObjectOptions{}); err != nil {
		log.Errorf("[Storage] 下载产物 '%s' 失败: %v", objectName, err)
		return err
	}

	log.Infof("[Storage] 产物下载完成: %s", localPath)
	return nil
}
