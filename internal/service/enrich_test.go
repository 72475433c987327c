package service

import (
	"testing"

	"cinematch-go/internal/model"
)

func TestBuildQueryText(t *testing.T) {
	year2018 := 2018
	year1999 := 1999

	tests := []struct {
		name string
		req  model.RecommendRequest
		want string
	}{
		{
			name: "仅梗概时原样返回",
			req:  model.RecommendRequest{Synopsis: "A young wizard discovers his magical heritage."},
			want: "A young wizard discovers his magical heritage.",
		},
		{
			name: "全部元数据按冻结格式拼接",
			req: model.RecommendRequest{
				Synopsis: "A grieving family is haunted by tragic and disturbing occurrences.",
				Genre:    "Horror, Mystery, Thriller",
				Year:     &year2018,
				Title:    "Hereditary",
			},
			want: "Genre: Horror, Mystery, Thriller. Year: 2018. Title: Hereditary. Overview: A grieving family is haunted by tragic and disturbing occurrences.",
		},
		{
			name: "仅类型字段",
			req: model.RecommendRequest{
				Synopsis: "Two hitmen philosophize between jobs.",
				Genre:    "Crime",
			},
			want: "Genre: Crime. Overview: Two hitmen philosophize between jobs.",
		},
		{
			name: "仅年份字段",
			req: model.RecommendRequest{
				Synopsis: "An office worker starts an underground club.",
				Year:     &year1999,
			},
			want: "Year: 1999. Overview: An office worker starts an underground club.",
		},
		{
			name: "仅标题字段",
			req: model.RecommendRequest{
				Synopsis: "A computer hacker learns the truth about reality.",
				Title:    "The Matrix",
			},
			want: "Title: The Matrix. Overview: A computer hacker learns the truth about reality.",
		},
		{
			name: "标题与年份缺类型",
			req: model.RecommendRequest{
				Synopsis: "A computer hacker learns the truth about reality.",
				Year:     &year1999,
				Title:    "The Matrix",
			},
			want: "Year: 1999. Title: The Matrix. Overview: A computer hacker learns the truth about reality.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildQueryText(tt.req)
			if got != tt.want {
				t.Errorf("BuildQueryText() = %q, want %q", got, tt.want)
			}
			// 纯函数：重复调用必须字节级一致
			if again := BuildQueryText(tt.req); again != got {
				t.Errorf("BuildQueryText() 第二次调用 = %q, 与第一次 %q 不一致", again, got)
			}
		})
	}
}
