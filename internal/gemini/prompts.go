package gemini

import (
	"fmt"
	"strings"

	"github.com/starford/adcanvas/internal/models"
)

func isChinese(language string) bool {
	switch strings.ToLower(language) {
	case "zh", "zh-tw", "zh-cn":
		return true
	}
	return false
}

func analysisPrompt(language string) string {
	if isChinese(language) {
		return `用简体中文快速分析产品，提供5个创意概念，保持简洁。

JSON格式：
{
  "reasoning_steps": [
    {"step": "产品分析", "analysis": "简短产品描述"},
    {"step": "目标客群", "analysis": "简短客群分析"},
    {"step": "视觉特点", "analysis": "简短外观特色"},
    {"step": "市场策略", "analysis": "简短市场定位"},
    {"step": "广告方向", "analysis": "简短广告重点"}
  ],
  "product_type": "产品类别",
  "creative_concepts": [
    {"name": "英雄照片", "description": "简短说明", "rationale": "简短理由"},
    {"name": "生活情境", "description": "简短说明", "rationale": "简短理由"},
    {"name": "简约风格", "description": "简短说明", "rationale": "简短理由"},
    {"name": "高端品牌", "description": "简短说明", "rationale": "简短理由"},
    {"name": "创意表现", "description": "简短说明", "rationale": "简短理由"}
  ]
}`
	}
	return `Analyze this product quickly and provide 5 creative concepts. Be concise.

JSON format:
{
  "reasoning_steps": [
    {"step": "Product Type", "analysis": "What is this product?"},
    {"step": "Visual Style", "analysis": "Key visual elements?"},
    {"step": "Target Audience", "analysis": "Who would buy this?"},
    {"step": "Creative Strategy", "analysis": "Best advertising approach?"},
    {"step": "Execution", "analysis": "How to implement?"}
  ],
  "product_type": "product category",
  "creative_concepts": [
    {"name": "Hero Shot", "description": "Clean product focus", "rationale": "Shows product clearly"},
    {"name": "Lifestyle", "description": "Product in use", "rationale": "Shows context"},
    {"name": "Minimalist", "description": "Simple background", "rationale": "Clean aesthetic"},
    {"name": "Premium", "description": "Luxury presentation", "rationale": "High-end appeal"},
    {"name": "Creative", "description": "Artistic approach", "rationale": "Memorable impact"}
  ]
}`
}

// DefaultAnalysis is the canned result used when analysis times out and the
// fallback policy is enabled.
func DefaultAnalysis(language string) models.Analysis {
	if isChinese(language) {
		return models.Analysis{
			Steps: []models.ReasoningStep{
				{Step: "产品分析", Analysis: "分析超时，使用通用创意方向"},
			},
			Concepts: []models.ConceptSuggestion{
				{Concept: "英雄照片", Prompt: "干净的产品特写，专业摄影棚灯光", Rationale: "清楚展示产品"},
				{Concept: "生活情境", Prompt: "产品在日常使用情境中", Rationale: "展示使用场景"},
				{Concept: "简约风格", Prompt: "简洁背景，突出产品轮廓", Rationale: "干净的美感"},
				{Concept: "高端品牌", Prompt: "奢华质感的陈列与光影", Rationale: "高端吸引力"},
				{Concept: "创意表现", Prompt: "艺术化的构图与色彩", Rationale: "令人印象深刻"},
			},
		}
	}
	return models.Analysis{
		Steps: []models.ReasoningStep{
			{Step: "Product Type", Analysis: "Analysis timed out; using generic creative directions"},
		},
		Concepts: []models.ConceptSuggestion{
			{Concept: "Hero Shot", Prompt: "Clean product focus with studio lighting", Rationale: "Shows product clearly"},
			{Concept: "Lifestyle", Prompt: "Product in everyday use", Rationale: "Shows context"},
			{Concept: "Minimalist", Prompt: "Simple background that isolates the product", Rationale: "Clean aesthetic"},
			{Concept: "Premium", Prompt: "Luxury presentation with rich materials", Rationale: "High-end appeal"},
			{Concept: "Creative", Prompt: "Artistic composition and bold color", Rationale: "Memorable impact"},
		},
	}
}

func formatInfo(ratio string) string {
	switch ratio {
	case "1:1":
		return "Square format"
	case "16:9":
		return "Landscape format"
	case "9:16":
		return "Portrait format"
	case "4:5":
		return "Portrait 4:5 format"
	}
	return "Format: " + ratio
}

// creativePrompt frames a concept prompt for an advertising placement.
func creativePrompt(req models.GenerateRequest) string {
	platform := req.Platform
	if platform == "" {
		platform = "instagram"
	}
	placement := fmt.Sprintf("%s (%s)", platform, req.AspectRatio)
	if req.PresetName != "" {
		placement = fmt.Sprintf("%s (%s)", req.PresetName, platform)
	}
	return fmt.Sprintf(`Create a professional advertising image for %s: %s
High-resolution, studio-lit product photograph with professional lighting setup.
Ultra-realistic commercial photography style with sharp focus and clean composition.
Product prominently displayed with attention to detail and visual impact.
%s.
Aspect ratio: %s (important: maintain this exact aspect ratio).
Optimized for %s platform specifications and best practices.`,
		placement, req.Prompt, formatInfo(req.AspectRatio), req.AspectRatio, platform)
}

func linkedConceptPrompt(titles []string, language string) string {
	var list strings.Builder
	for i, t := range titles {
		fmt.Fprintf(&list, "%d. %s\n", i+1, t)
	}
	if strings.ToLower(language) == "zh-cn" {
		return fmt.Sprintf("这是一个包含%d个产品的合并图片，请仔细分析这张图片中的所有产品，并基于它们的视觉特点和功能，生成一个综合的营销概念，将这些产品的特点有机结合：\n\n"+
			"产品列表：\n%s\n请基于图片中所有产品的视觉特征（颜色、形状、风格、材质、相互关系等）来生成概念。\n\n"+
			"请提供：\n1. 综合概念标题（20字以内）\n2. 详细描述（100-200字）\n3. 核心卖点（3-5个关键词）\n\n"+
			"输出格式：\n标题：[概念标题]\n描述：[详细描述]\n卖点：[关键词1, 关键词2, 关键词3]", len(titles), list.String())
	}
	return fmt.Sprintf("This is a merged image containing %d products. Please carefully analyze all products in this image and, "+
		"based on their visual characteristics and functions, generate a comprehensive marketing concept that organically "+
		"combines the features of these products:\n\nProduct List:\n%s\n"+
		"Please generate the concept based on the visual characteristics (colors, shapes, styles, materials, relationships, etc.) "+
		"of ALL products in the image.\n\nPlease provide:\n1. A comprehensive concept title (under 20 words)\n"+
		"2. Detailed description (100-200 words)\n3. Core selling points (3-5 keywords)\n\n"+
		"Output format:\nTitle: [Concept Title]\nDescription: [Detailed Description]\nSelling Points: [keyword1, keyword2, keyword3]",
		len(titles), list.String())
}
