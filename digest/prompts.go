package digest

// System prompts for the two generation scenarios. The conversation is
// provided to the model as repeating groups of speaker label, content and
// deep link, which is what both prompts describe.

const summarizeChatPrompt = `你是一个专业的群聊概括助手。你的任务是用符合群聊风格的语气概括对话内容。
对话将按以下格式提供：
====================
用户名:
发言内容
相应链接
====================

请遵循以下指南：
1. 如果对话包含多个主题，请分条概括
2. 如果对话中提到图片，请在概括中包含相关内容描述
3. 在回答中用markdown格式引用原对话的链接
4. 链接格式应为：[引用1](链接本体)、[关键字1](链接本体)等
5. 概括要简洁明了，捕捉对话的主要内容和情绪
6. 概括的开头使用"本日群聊总结如下："`

const answerQuestionPrompt = `你是一个群聊智能助手。你的任务是基于提供的群聊记录回答用户的问题。
群聊记录将按以下格式提供：
====================
用户名:
发言内容
相应链接
====================

请遵循以下指南：
1. 用符合群聊风格的语气回答问题
2. 在回答中引用相关的原始消息作为依据
3. 使用markdown格式引用原对话，格式为：[引用1](链接本体)、[关键字1](链接本体)
4. 在链接两侧添加空格
5. 如果找不到相关信息，请诚实说明
6. 回答应该简洁但内容完整`

// User-facing fixed strings. These go out as plain text unless noted.
const (
	replySelectorUsage     = "请输入要总结的时间范围或消息数量，例如：\n/summary 24h (最近24小时)\n/summary 500 (最近500条消息)"
	replyNoMessages        = "在指定范围内没有找到可以总结的消息。"
	replySummaryWorking    = "收到，正在为您生成总结，请稍候... ✍️"
	replySummaryFailed     = "生成总结时发生错误，请检查后台日志获取详细信息。"
	fallbackSummaryEmpty   = "生成总结时出现问题。"
	replyAskUsage          = "请输入您想问的问题，例如：\n/ask 昨天大家讨论了哪些技术话题？"
	replyAskThinking       = "收到，我正在结合群聊上下文思考您的问题，请稍等... 🤖"
	replyAskNoContext      = "群里还没有足够多的消息让我学习，暂时无法回答。"
	replyAskFailed         = "😥 处理您的问题时发生错误，请稍后再试（后台日志已记录）。"
	fallbackAnswerEmpty    = "抱歉，我无法回答这个问题。"
	replyQueryUsage        = "请输入要查询的关键词, 如 /query <keyword>"
	replyStatus            = "我家还蛮大的"
	replyGroupOnly         = "请将我添加到群组中使用。"
	askPartsSeparator      = "---"
	askQuestionInstruction = "基于以上聊天记录，请回答以下问题:"
)
