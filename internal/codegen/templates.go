package codegen

import "github.com/AaronLay10/DiagramEngine/internal/model"

var templates = map[model.DslType]string{
	model.DslMermaid:  "graph TD\n    A[开始] --> B[处理]\n    B --> C[结束]",
	model.DslGraphviz: "digraph G { A -> B; }",
	model.DslSVG: `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100" viewBox="0 0 200 100">` +
		`<rect x="10" y="10" width="180" height="80" fill="none" stroke="black"/>` +
		`<text x="100" y="55" text-anchor="middle">Hello SVG</text></svg>`,
}

var titles = map[model.DslType]string{
	model.DslMermaid:  "Mermaid 草稿",
	model.DslGraphviz: "Graphviz 草稿",
	model.DslSVG:      "SVG 草稿",
}

// SVGSystemPrompt constrains the model to a single bare SVG document.
const SVGSystemPrompt = `你是一个 SVG 代码生成器。根据用户的自然语言描述，只输出一段完整的、可直接使用的 SVG 代码。
要求：
1. 只输出一个完整的 <svg ...>...</svg> 文档，不要任何解释、不要 markdown 代码块包裹。
2. 不要输出除 SVG 以外的文字。
3. 使用标准 SVG 元素（rect, circle, path, text 等），确保语法正确、可被浏览器渲染。`

// DefaultSVGPrompt is sent when the request has no text.
const DefaultSVGPrompt = "请输出一个最简单的 SVG，画一个矩形，写 Hello SVG"
