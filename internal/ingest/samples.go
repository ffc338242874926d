package ingest

// Samples returns a small built-in corpus for trying the bot without documents.
func Samples() []Source {
	return []Source{
		{
			Content: "Retrieval-Augmented Generation (RAG) is a technique that combines information retrieval with text generation. " +
				"It works by first retrieving relevant documents from a knowledge base, then using those documents as context for a " +
				"language model to generate accurate, grounded responses. RAG is particularly useful for question-answering systems " +
				"because it allows the model to access external knowledge rather than relying solely on its training data.",
			Meta: map[string]any{"filename": "rag_basics.txt", "topic": "RAG", "source": "sample"},
		},
		{
			Content: "Haystack is an open-source framework for building production-ready LLM applications, retrieval-augmented " +
				"generative pipelines, and state-of-the-art search systems. It provides components for document stores, retrievers, " +
				"readers, and generators that can be composed into flexible pipelines. Haystack supports various LLM providers " +
				"including OpenAI, Anthropic, Cohere, and local models.",
			Meta: map[string]any{"filename": "haystack_intro.txt", "topic": "Haystack", "source": "sample"},
		},
		{
			Content: "Vector embeddings are numerical representations of text that capture semantic meaning. When documents are " +
				"converted to embeddings, similar documents will have similar vector representations. This allows for semantic search, " +
				"where queries can find relevant documents based on meaning rather than just keyword matching. Common embedding models " +
				"include sentence-transformers and OpenAI embeddings.",
			Meta: map[string]any{"filename": "embeddings.txt", "topic": "Embeddings", "source": "sample"},
		},
		{
			Content: "Data privacy in AI systems is crucial. When using cloud-based LLMs, your data is sent to external servers. " +
				"For maximum privacy, consider using local models like Ollama (running Llama, Mistral) or HuggingFace models that run " +
				"entirely on your infrastructure. Embeddings can also run locally using sentence-transformers, ensuring no data leaves " +
				"your system during the retrieval process.",
			Meta: map[string]any{"filename": "privacy.txt", "topic": "Privacy", "source": "sample"},
		},
	}
}
