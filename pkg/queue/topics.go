// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：sv.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：statement(账单)、link(签名链接)、download(下载)、cleanup(清理)
// 动作/状态：stored/issued/denied/downloaded/failed/completed

const (
	// 账单存储领域.
	TopicStatementStored     = "sv.statement.stored"     // 账单加密入库完成
	TopicStatementDownloaded = "sv.statement.downloaded" // 账单被成功下载

	// 签名链接领域.
	TopicLinkIssued = "sv.link.issued" // 下载令牌已签发
	TopicLinkDenied = "sv.link.denied" // 访问被拒绝(签名无效/过期/已用)

	// 下载与清理领域.
	TopicDownloadFailed   = "sv.download.failed"   // 解密或对象读取失败
	TopicCleanupCompleted = "sv.cleanup.completed" // 过期令牌清理任务完成
)

// 主题分组，用于批量订阅或权限控制.
var (
	// 账单相关主题集合.
	StatementTopics = []string{
		TopicStatementStored, TopicStatementDownloaded,
	}

	// 安全事件主题集合.
	SecurityTopics = []string{
		TopicLinkIssued, TopicLinkDenied, TopicDownloadFailed,
	}

	// 运维主题集合.
	OpsTopics = []string{
		TopicCleanupCompleted,
	}
)
