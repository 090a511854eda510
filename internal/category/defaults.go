package category

// DefaultTable is used when the configuration does not provide one.
func DefaultTable() []Category {
	return []Category{
		{Name: "work", Keywords: []string{"职业", "工作", "职场", "career", "job"}},
		{Name: "business", Keywords: []string{"商业", "商务", "business", "marketing", "销售"}},
		{Name: "tools", Keywords: []string{"工具", "tool", "效率", "productivity"}},
		{Name: "language", Keywords: []string{"语言", "翻译", "language", "translate", "英语"}},
		{Name: "office", Keywords: []string{"办公", "office", "文档", "excel", "ppt"}},
		{Name: "general", Keywords: []string{"通用", "general", "日常", "常用"}},
		{Name: "writing", Keywords: []string{"写作", "文案", "writing", "content", "创作"}},
		{Name: "programming", Keywords: []string{"编程", "代码", "programming", "code", "开发"}},
		{Name: "emotion", Keywords: []string{"情感", "心理", "emotion", "情绪"}},
		{Name: "education", Keywords: []string{"教育", "学习", "education", "teaching", "培训"}},
		{Name: "creative", Keywords: []string{"创意", "创新", "creative", "设计思维"}},
		{Name: "academic", Keywords: []string{"学术", "研究", "academic", "论文"}},
		{Name: "design", Keywords: []string{"设计", "UI", "UX", "design", "视觉"}},
		{Name: "tech", Keywords: []string{"技术", "科技", "tech", "AI", "人工智能"}},
		{Name: "entertainment", Keywords: []string{"娱乐", "游戏", "entertainment", "fun"}},
	}
}
